// Package beatmap contains the parsed beatmap representation handed to the
// scoring engine.
//
// A Beatmap is immutable after parsing. The cache owns the canonical copy
// and hands out clones; clones share the raw byte slice, which is never
// written to after FromBytes returns.
package beatmap

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Beatmap holds the chart data the scoring engine needs, plus the raw file
// bytes so engine adapters can forward the original chart untouched.
type Beatmap struct {
	ID            int64
	FormatVersion int
	Mode          int
	Title         string
	Artist        string
	Version       string
	ObjectCount   int

	raw []byte
}

// FromBytes parses raw .osu file bytes into a Beatmap.
func FromBytes(id int64, data []byte) (*Beatmap, error) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !sc.Scan() {
		return nil, fmt.Errorf("%w: empty file", ErrMalformed)
	}

	header := strings.TrimPrefix(strings.TrimSpace(sc.Text()), "\ufeff")
	const magic = "osu file format v"
	if !strings.HasPrefix(header, magic) {
		return nil, fmt.Errorf("%w: missing format header", ErrMalformed)
	}
	version, err := strconv.Atoi(strings.TrimPrefix(header, magic))
	if err != nil {
		return nil, fmt.Errorf("%w: bad format version %q", ErrMalformed, header)
	}

	b := &Beatmap{
		ID:            id,
		FormatVersion: version,
		raw:           data,
	}

	section := ""
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = line[1 : len(line)-1]
			continue
		}

		switch section {
		case "General", "Metadata":
			key, value, ok := strings.Cut(line, ":")
			if !ok {
				continue
			}
			b.applyProperty(strings.TrimSpace(key), strings.TrimSpace(value))
		case "HitObjects":
			b.ObjectCount++
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if b.ObjectCount == 0 {
		return nil, fmt.Errorf("%w: no hit objects", ErrMalformed)
	}

	return b, nil
}

func (b *Beatmap) applyProperty(key, value string) {
	switch key {
	case "Mode":
		if mode, err := strconv.Atoi(value); err == nil {
			b.Mode = mode
		}
	case "Title":
		b.Title = value
	case "Artist":
		b.Artist = value
	case "Version":
		b.Version = value
	}
}

// Raw returns the original file bytes. Callers must not modify the slice.
func (b *Beatmap) Raw() []byte {
	return b.raw
}

// Clone returns a copy sharing the raw bytes. Cheap by design: the metadata
// is value-copied and the raw slice is read-only.
func (b *Beatmap) Clone() *Beatmap {
	c := *b
	return &c
}
