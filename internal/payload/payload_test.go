package payload

import (
	"encoding/json"
	"testing"
)

func TestRange(t *testing.T) {
	tests := []struct {
		name       string
		start, end int
		want       string
		wantErr    bool
	}{
		{"empty", 3, 3, `{"numbers":[]}`, false},
		{"small", 0, 3, `{"numbers":[0,1,2]}`, false},
		{"offset", 1, 4, `{"numbers":[1,2,3]}`, false},
		{"inverted", 4, 1, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Range(tt.start, tt.end)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Range() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && string(got) != tt.want {
				t.Errorf("Range() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSamples(t *testing.T) {
	want := map[string]int{SmallName: 500, LargeName: 100000}
	for _, s := range Samples() {
		data, err := s.Encode()
		if err != nil {
			t.Fatalf("Encode(%s) error = %v", s.Name, err)
		}
		var doc Document
		if err := json.Unmarshal(data, &doc); err != nil {
			t.Fatalf("Unmarshal(%s) error = %v", s.Name, err)
		}
		if len(doc.Numbers) != want[s.Name] {
			t.Errorf("%s has %d numbers, want %d", s.Name, len(doc.Numbers), want[s.Name])
		}
		if doc.Numbers[0] != 0 || doc.Numbers[len(doc.Numbers)-1] != s.Count-1 {
			t.Errorf("%s spans %d..%d", s.Name, doc.Numbers[0], doc.Numbers[len(doc.Numbers)-1])
		}
		delete(want, s.Name)
	}
	if len(want) != 0 {
		t.Errorf("missing samples: %v", want)
	}
}
