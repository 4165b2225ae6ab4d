package feed

import "fmt"

// Chunker groups documents into fixed-size batches. Batch boundaries are
// purely positional; documents are never reordered.
type Chunker struct {
	size int
	cur  []Document
}

// NewChunker creates a chunker with the given batch size. A size below 1 is
// a configuration error.
func NewChunker(size int) (*Chunker, error) {
	if size < 1 {
		return nil, fmt.Errorf("chunksize must be >= 1, got %d", size)
	}
	return &Chunker{size: size}, nil
}

// Add appends a document to the current batch and returns the batch when it
// reaches the configured size, nil otherwise.
func (c *Chunker) Add(d Document) []Document {
	c.cur = append(c.cur, d)
	if len(c.cur) == c.size {
		batch := c.cur
		c.cur = nil
		return batch
	}
	return nil
}

// Flush returns the final partial batch, if any.
func (c *Chunker) Flush() []Document {
	batch := c.cur
	c.cur = nil
	return batch
}

// Chunk splits documents into batches of at most size documents. The last
// batch may be smaller; every other batch has exactly size documents.
func Chunk(docs []Document, size int) ([][]Document, error) {
	c, err := NewChunker(size)
	if err != nil {
		return nil, err
	}

	var batches [][]Document
	for _, d := range docs {
		if batch := c.Add(d); batch != nil {
			batches = append(batches, batch)
		}
	}
	if batch := c.Flush(); len(batch) > 0 {
		batches = append(batches, batch)
	}
	return batches, nil
}
