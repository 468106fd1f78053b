package corpus

import "sync/atomic"

// Index publishes the current corpus to concurrent readers and supports
// atomic replacement on reload. Readers must take one snapshot per operation
// via [Index.Corpus] and use it throughout, so a concurrent reload can never
// mix two corpora inside a single computation.
type Index struct {
	current atomic.Pointer[Corpus]
}

// NewIndex returns an empty index. [Index.Ready] is false until the first
// successful load.
func NewIndex() *Index {
	return &Index{}
}

// Reload loads the candidate sources and, only on success, publishes the
// resulting corpus with a single pointer swap. On failure the previously
// published corpus stays in place.
func (i *Index) Reload(sources ...Source) error {
	c, err := Load(sources...)
	if err != nil {
		return err
	}
	i.current.Store(c)
	return nil
}

// Publish swaps in an already built corpus.
func (i *Index) Publish(c *Corpus) {
	i.current.Store(c)
}

// Corpus returns the current snapshot, or nil before the first load.
func (i *Index) Corpus() *Corpus {
	return i.current.Load()
}

// Ready reports whether a corpus has been published.
func (i *Index) Ready() bool {
	return i.current.Load() != nil
}
