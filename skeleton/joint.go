// Package skeleton maps tracked skeletons to the shapes drawn over the video
// and depth images.
package skeleton

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"
)

// JointType names a skeletal landmark. Values follow the sensor's joint order.
type JointType int

const (
	HipCenter JointType = iota
	Spine
	ShoulderCenter
	Head
	ShoulderLeft
	ElbowLeft
	WristLeft
	HandLeft
	ShoulderRight
	ElbowRight
	WristRight
	HandRight
	HipLeft
	KneeLeft
	AnkleLeft
	FootLeft
	HipRight
	KneeRight
	AnkleRight
	FootRight

	// JointCount is the number of joints of a fully tracked skeleton.
	JointCount int = iota
)

var jointNames = [JointCount]string{
	HipCenter:      "HipCenter",
	Spine:          "Spine",
	ShoulderCenter: "ShoulderCenter",
	Head:           "Head",
	ShoulderLeft:   "ShoulderLeft",
	ElbowLeft:      "ElbowLeft",
	WristLeft:      "WristLeft",
	HandLeft:       "HandLeft",
	ShoulderRight:  "ShoulderRight",
	ElbowRight:     "ElbowRight",
	WristRight:     "WristRight",
	HandRight:      "HandRight",
	HipLeft:        "HipLeft",
	KneeLeft:       "KneeLeft",
	AnkleLeft:      "AnkleLeft",
	FootLeft:       "FootLeft",
	HipRight:       "HipRight",
	KneeRight:      "KneeRight",
	AnkleRight:     "AnkleRight",
	FootRight:      "FootRight",
}

func (j JointType) Valid() bool {
	return j >= 0 && int(j) < JointCount
}

func (j JointType) String() string {
	if !j.Valid() {
		return fmt.Sprintf("JointType(%d)", int(j))
	}
	return jointNames[j]
}

// ParseJointType returns the joint with the given name.
func ParseJointType(name string) (JointType, error) {
	for idx, n := range jointNames {
		if n == name {
			return JointType(idx), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownJoint, name)
}

// Skeleton is one tracked person in one frame: the 2D position of each joint
// in a given image space.
type Skeleton map[JointType]r2.Vec
