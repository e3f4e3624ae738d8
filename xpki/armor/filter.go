package armor

import (
	"io"

	"github.com/juju/errors"
)

// Filter is a pull-based pipeline contract: a chain stage driven entirely
// by its downstream consumer, which
// repeatedly calls Fill (read path) or Flush (write path) until it gets an
// error. There is no shared mutable state across streams and no
// cancellation primitive beyond a fill/flush returning an error — matching
// the single-threaded, cooperative, pull-driven scheduling model.
type Filter interface {
	// Init prepares the filter to run; it is a no-op for filters (like this
	// one) whose setup work happens lazily on the first Fill/Flush.
	Init() error

	// Fill reads decoded bytes into buf (read path only). It returns
	// io.EOF once the stream, including CRC validation, is exhausted.
	Fill(buf []byte) (int, error)

	// Flush writes p into the armored envelope (write path only).
	Flush(p []byte) (int, error)

	// Free releases the filter. For armor it flushes and finalizes the
	// write-path trailer, if this is a write filter; it is a no-op on the
	// read path, since the line buffer belongs to the Context, which the
	// caller owns.
	Free() error

	// Describe returns a short, human-readable identification of the
	// filter stage, for diagnostics.
	Describe() string
}

// armorReadFilter adapts a Reader to the Filter contract.
type armorReadFilter struct {
	ctx      *Context
	upstream io.Reader
	r        *Reader
}

// NewReadFilter returns a read-path Filter over upstream. The header search
// (or binary-bypass detection) happens on the first Fill call, not here.
func NewReadFilter(ctx *Context, upstream io.Reader) Filter {
	return &armorReadFilter{ctx: ctx, upstream: upstream}
}

func (f *armorReadFilter) Init() error { return nil }

func (f *armorReadFilter) Fill(buf []byte) (int, error) {
	if f.r == nil {
		r, err := NewReader(f.ctx, f.upstream)
		if err != nil {
			return 0, err
		}
		f.r = r
	}
	return f.r.Read(buf)
}

func (f *armorReadFilter) Flush(p []byte) (int, error) {
	return 0, errors.New("armor: Flush called on a read filter")
}

func (f *armorReadFilter) Free() error { return nil }

func (f *armorReadFilter) Describe() string {
	if f.r != nil && f.r.Bypass() {
		return "armor-filter(read, bypass=" + f.r.Type() + ")"
	}
	return "armor-filter(read)"
}

// armorWriteFilter adapts a Writer to the Filter contract.
type armorWriteFilter struct {
	ctx        *Context
	downstream io.Writer
	w          *Writer
}

// NewWriteFilter returns a write-path Filter over downstream. The envelope
// header is emitted on the first Flush call.
func NewWriteFilter(ctx *Context, downstream io.Writer) Filter {
	return &armorWriteFilter{ctx: ctx, downstream: downstream}
}

func (f *armorWriteFilter) Init() error {
	if f.w != nil {
		return nil
	}
	w, err := NewWriter(f.ctx, f.downstream)
	if err != nil {
		return err
	}
	f.w = w
	return nil
}

func (f *armorWriteFilter) Fill(buf []byte) (int, error) {
	return 0, errors.New("armor: Fill called on a write filter")
}

func (f *armorWriteFilter) Flush(p []byte) (int, error) {
	if err := f.Init(); err != nil {
		return 0, err
	}
	return f.w.Write(p)
}

func (f *armorWriteFilter) Free() error {
	if f.w == nil {
		return nil
	}
	return f.w.Close()
}

func (f *armorWriteFilter) Describe() string {
	return "armor-filter(write, type=" + f.ctx.What.String() + ")"
}
