package pixel

// Source is how a capture hands its pixels to the renderer: either compressed bytes
// that need decoding or an already-raw RGBA view.
type Source interface {
	// Size is the payload size in bytes, for diagnostics.
	Size() int
	isSource()
}

// Encoded carries a compressed still image (png, jpeg, ...).
type Encoded struct {
	Data []byte
}

// SharedView carries a raw RGBA grid owned by the caller. The in-process
// renderer references it; the background context receives a copy.
type SharedView struct {
	Buffer *Buffer
}

func (e Encoded) Size() int    { return len(e.Data) }
func (v SharedView) Size() int { return v.Buffer.Size() }

func (Encoded) isSource()    {}
func (SharedView) isSource() {}

// Detach returns a source that shares no memory with src.
func Detach(src Source) Source {
	switch s := src.(type) {
	case Encoded:
		data := make([]byte, len(s.Data))
		copy(data, s.Data)
		return Encoded{Data: data}
	case SharedView:
		return SharedView{Buffer: s.Buffer.Clone()}
	default:
		return src
	}
}
