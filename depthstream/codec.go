package depthstream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
	"gonum.org/v1/gonum/spatial/r3"

	"essaim.dev/kinectview/depth"
	"essaim.dev/kinectview/sensor"
	"essaim.dev/kinectview/skeleton"
)

// Field numbers of the frame message.
const (
	fieldNear      protowire.Number = 1
	fieldFar       protowire.Number = 2
	fieldColor     protowire.Number = 3
	fieldDepth     protowire.Number = 4
	fieldSkeleton  protowire.Number = 5
	fieldImageW    protowire.Number = 1
	fieldImageH    protowire.Number = 2
	fieldImagePix  protowire.Number = 3
	fieldSkelID    protowire.Number = 1
	fieldSkelState protowire.Number = 2
	fieldSkelJoint protowire.Number = 3
	fieldJointType protowire.Number = 1
	fieldJointX    protowire.Number = 2
	fieldJointY    protowire.Number = 3
	fieldJointZ    protowire.Number = 4
)

// maxDimension bounds the width and height of a received image.
const maxDimension = 1 << 14

var ErrMalformed = errors.New("malformed message")

// Frame is the decoded content of one sensor event.
type Frame struct {
	Thresholds depth.Thresholds

	Color     *Image
	Depth     *DepthImage
	Skeletons []sensor.SkeletonData
}

type Image struct {
	Width  int
	Height int
	Pix    []byte
}

type DepthImage struct {
	Width   int
	Height  int
	Samples []uint16
}

// FrameFromEvent copies the frames of e.
func FrameFromEvent(e *sensor.Event, t depth.Thresholds) Frame {
	f := Frame{Thresholds: t}

	if c := e.OpenColorFrame(); c != nil {
		f.Color = &Image{Width: c.Width, Height: c.Height, Pix: c.Pix}
	}
	if d := e.OpenDepthFrame(); d != nil {
		f.Depth = &DepthImage{Width: d.Width, Height: d.Height, Samples: d.Samples}
	}
	if s := e.OpenSkeletonFrame(); s != nil {
		f.Skeletons = s.Skeletons
	}

	return f
}

// Encode appends the wire encoding of f to b.
func (f Frame) Encode(b []byte) []byte {
	b = protowire.AppendTag(b, fieldNear, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(f.Thresholds.Near))
	b = protowire.AppendTag(b, fieldFar, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(f.Thresholds.Far))

	if f.Color != nil {
		var m []byte
		m = appendImageHeader(m, f.Color.Width, f.Color.Height)
		m = protowire.AppendTag(m, fieldImagePix, protowire.BytesType)
		m = protowire.AppendBytes(m, f.Color.Pix)

		b = protowire.AppendTag(b, fieldColor, protowire.BytesType)
		b = protowire.AppendBytes(b, m)
	}

	if f.Depth != nil {
		samples := make([]byte, 2*len(f.Depth.Samples))
		for idx, s := range f.Depth.Samples {
			binary.LittleEndian.PutUint16(samples[2*idx:], s)
		}

		var m []byte
		m = appendImageHeader(m, f.Depth.Width, f.Depth.Height)
		m = protowire.AppendTag(m, fieldImagePix, protowire.BytesType)
		m = protowire.AppendBytes(m, samples)

		b = protowire.AppendTag(b, fieldDepth, protowire.BytesType)
		b = protowire.AppendBytes(b, m)
	}

	for _, s := range f.Skeletons {
		b = protowire.AppendTag(b, fieldSkeleton, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeSkeleton(s))
	}

	return b
}

func appendImageHeader(b []byte, width, height int) []byte {
	b = protowire.AppendTag(b, fieldImageW, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(width))
	b = protowire.AppendTag(b, fieldImageH, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(height))
}

func encodeSkeleton(s sensor.SkeletonData) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldSkelID, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(s.TrackingID)))
	b = protowire.AppendTag(b, fieldSkelState, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(s.State))

	// Joint order keeps the encoding deterministic.
	for j := skeleton.JointType(0); int(j) < skeleton.JointCount; j++ {
		p, ok := s.Joints[j]
		if !ok {
			continue
		}

		var m []byte
		m = protowire.AppendTag(m, fieldJointType, protowire.VarintType)
		m = protowire.AppendVarint(m, uint64(j))
		m = appendFloat(m, fieldJointX, p.X)
		m = appendFloat(m, fieldJointY, p.Y)
		m = appendFloat(m, fieldJointZ, p.Z)

		b = protowire.AppendTag(b, fieldSkelJoint, protowire.BytesType)
		b = protowire.AppendBytes(b, m)
	}

	return b
}

func appendFloat(b []byte, num protowire.Number, v float64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

// field is one decoded field of a message.
type field struct {
	num   protowire.Number
	typ   protowire.Type
	value uint64
	bytes []byte
}

// walk calls fn for every field of the message b.
func walk(b []byte, fn func(f field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %w", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.value, n = protowire.ConsumeVarint(b)
		case protowire.Fixed64Type:
			f.value, n = protowire.ConsumeFixed64(b)
		case protowire.BytesType:
			f.bytes, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return fmt.Errorf("%w: field %d: %w", ErrMalformed, num, protowire.ParseError(n))
		}
		b = b[n:]

		if err := fn(f); err != nil {
			return err
		}
	}

	return nil
}

// DecodeFrame decodes a frame message. Unknown fields are skipped.
func DecodeFrame(b []byte) (Frame, error) {
	var f Frame

	err := walk(b, func(fl field) error {
		switch fl.num {
		case fieldNear:
			f.Thresholds.Near = uint16(fl.value)
		case fieldFar:
			f.Thresholds.Far = uint16(fl.value)
		case fieldColor:
			w, h, pix, err := decodeImage(fl.bytes)
			if err != nil {
				return fmt.Errorf("color: %w", err)
			}
			if len(pix) != w*h*4 {
				return fmt.Errorf("%w: color image of %dx%d has %d bytes", ErrMalformed, w, h, len(pix))
			}
			f.Color = &Image{Width: w, Height: h, Pix: pix}
		case fieldDepth:
			w, h, raw, err := decodeImage(fl.bytes)
			if err != nil {
				return fmt.Errorf("depth: %w", err)
			}
			if len(raw) != w*h*2 {
				return fmt.Errorf("%w: depth image of %dx%d has %d bytes", ErrMalformed, w, h, len(raw))
			}
			samples := make([]uint16, w*h)
			for idx := range samples {
				samples[idx] = binary.LittleEndian.Uint16(raw[2*idx:])
			}
			f.Depth = &DepthImage{Width: w, Height: h, Samples: samples}
		case fieldSkeleton:
			s, err := decodeSkeleton(fl.bytes)
			if err != nil {
				return fmt.Errorf("skeleton: %w", err)
			}
			f.Skeletons = append(f.Skeletons, s)
		}
		return nil
	})

	return f, err
}

// decodeImage returns the size and pixels of an image message. The size is
// checked so that width*height cannot overflow.
func decodeImage(b []byte) (width, height int, pix []byte, err error) {
	var w, h uint64
	err = walk(b, func(f field) error {
		switch f.num {
		case fieldImageW:
			w = f.value
		case fieldImageH:
			h = f.value
		case fieldImagePix:
			pix = f.bytes
		}
		return nil
	})
	if err != nil {
		return 0, 0, nil, err
	}

	if w == 0 || h == 0 || w > maxDimension || h > maxDimension {
		return 0, 0, nil, fmt.Errorf("%w: image of %dx%d", ErrMalformed, w, h)
	}

	return int(w), int(h), pix, nil
}

func decodeSkeleton(b []byte) (sensor.SkeletonData, error) {
	s := sensor.SkeletonData{Joints: make(map[skeleton.JointType]r3.Vec, skeleton.JointCount)}

	err := walk(b, func(f field) error {
		switch f.num {
		case fieldSkelID:
			s.TrackingID = int(protowire.DecodeZigZag(f.value))
		case fieldSkelState:
			s.State = sensor.TrackingState(f.value)
		case fieldSkelJoint:
			j, p, err := decodeJoint(f.bytes)
			if err != nil {
				return err
			}
			s.Joints[j] = p
		}
		return nil
	})

	return s, err
}

func decodeJoint(b []byte) (skeleton.JointType, r3.Vec, error) {
	var (
		j skeleton.JointType
		p r3.Vec
	)

	err := walk(b, func(f field) error {
		switch f.num {
		case fieldJointType:
			j = skeleton.JointType(f.value)
			if !j.Valid() {
				return fmt.Errorf("%w: joint type %d", ErrMalformed, f.value)
			}
		case fieldJointX:
			p.X = math.Float64frombits(f.value)
		case fieldJointY:
			p.Y = math.Float64frombits(f.value)
		case fieldJointZ:
			p.Z = math.Float64frombits(f.value)
		}
		return nil
	})

	return j, p, err
}
