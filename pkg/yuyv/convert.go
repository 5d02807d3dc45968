package yuyv

// Overflow selects what happens to a channel value outside [0, 255].
type Overflow int

const (
	// Saturate clamps out-of-range channels to 0 or 255.
	Saturate Overflow = iota
	// Wrap truncates toward zero and keeps the low 8 bits, so -3.7 becomes 253.
	Wrap
)

// String returns the config name of the policy.
func (o Overflow) String() string {
	if o == Wrap {
		return "wrap"
	}
	return "saturate"
}

// ParseOverflow maps a config value to a policy. Unknown values saturate.
func ParseOverflow(s string) Overflow {
	if s == "wrap" {
		return Wrap
	}
	return Saturate
}

// ITU-R BT.601 full-range coefficients.
const (
	coefRV = 1.402
	coefGU = 0.344136
	coefGV = 0.714136
	coefBU = 1.772
)

type options struct {
	overflow Overflow
}

// Option configures Convert.
type Option func(*options)

// WithOverflow sets the out-of-range policy. The default is Saturate.
func WithOverflow(o Overflow) Option {
	return func(opts *options) {
		opts.overflow = o
	}
}

// Convert decodes a YUYV frame into an RGB raster.
//
// Groups are laid out row by row, (Width+1)/2 groups per row. When Width is
// odd the final group of a row only writes its first pixel; its second
// luma sample is padding.
func Convert(f Frame, opts ...Option) (*Raster, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	o := options{overflow: Saturate}
	for _, opt := range opts {
		opt(&o)
	}
	toByte := saturate
	if o.overflow == Wrap {
		toByte = wrap
	}

	out := NewRaster(f.Width, f.Height)
	groupsPerRow := (f.Width + 1) / 2
	groups := len(f.Data) / BytesPerGroup

	for i := 0; i < groups; i++ {
		x := (i % groupsPerRow) * 2
		y := i / groupsPerRow

		g := f.Data[i*BytesPerGroup : i*BytesPerGroup+BytesPerGroup]
		y0 := float32(g[0])
		u := float32(g[1]) - 128
		y1 := float32(g[2])
		v := float32(g[3]) - 128

		dr := coefRV * v
		dg := -coefGU*u - coefGV*v
		db := coefBU * u

		out.Set(x, y, toByte(y0+dr), toByte(y0+dg), toByte(y0+db))
		if x+1 < f.Width {
			out.Set(x+1, y, toByte(y1+dr), toByte(y1+dg), toByte(y1+db))
		}
	}

	return out, nil
}

func saturate(c float32) uint8 {
	t := int(c)
	if t < 0 {
		return 0
	}
	if t > 255 {
		return 255
	}
	return uint8(t)
}

func wrap(c float32) uint8 {
	return uint8(int(c))
}
