package output

import (
	"io"

	"github.com/cheggaaa/pb/v3"

	"github.com/aquasecurity/patchfinder/types"
)

// Progress shows how far a crawl is from its patch limit.
type Progress struct {
	bar *pb.ProgressBar
}

func NewProgress(w io.Writer, limit int) *Progress {
	bar := pb.New(limit)
	bar.SetWriter(w)
	bar.Start()
	return &Progress{bar: bar}
}

func (p *Progress) Write(types.Patch) error {
	p.bar.Increment()
	return nil
}

func (p *Progress) Close() error {
	p.bar.Finish()
	return nil
}
