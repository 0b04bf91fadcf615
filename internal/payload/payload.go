// Package payload builds the {"numbers":[...]} documents exchanged between
// the load client, the object store and the test server.
package payload

import (
	"encoding/json"
	"fmt"
)

const (
	SmallName = "small_file.json"
	LargeName = "large_file.json"

	// SmallCount and LargeCount are the element counts of the sample objects.
	SmallCount = 500
	LargeCount = 100000
)

// Document is the payload schema.
type Document struct {
	Numbers []int `json:"numbers"`
}

// Range encodes a document holding the integers in [start, end).
func Range(start, end int) ([]byte, error) {
	if end < start {
		return nil, fmt.Errorf("invalid range [%d, %d)", start, end)
	}
	doc := Document{Numbers: make([]int, 0, end-start)}
	for i := start; i < end; i++ {
		doc.Numbers = append(doc.Numbers, i)
	}
	return json.Marshal(doc)
}

// Sample describes one generated object.
type Sample struct {
	Name  string
	Count int
}

// Samples are the objects the load client reads by default.
func Samples() []Sample {
	return []Sample{
		{Name: SmallName, Count: SmallCount},
		{Name: LargeName, Count: LargeCount},
	}
}

// Encode returns the document for s: the integers 0 through Count-1.
func (s Sample) Encode() ([]byte, error) {
	return Range(0, s.Count)
}
