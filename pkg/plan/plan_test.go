package plan

import (
	"path/filepath"
	"testing"
	"time"
)

func TestFileName(t *testing.T) {
	createdAt := time.Date(2023, 11, 15, 10, 30, 5, 0, time.UTC)

	tests := []struct {
		name   string
		ext    string
		suffix int
		want   string
	}{
		{name: "with random suffix", ext: "jpg", suffix: 4821, want: "2023-11-15T10-30-05R4821.jpg"},
		{name: "without suffix", ext: "png", want: "2023-11-15T10-30-05.png"},
		{name: "extension is lowercased", ext: ".HEIC", suffix: 1000, want: "2023-11-15T10-30-05R1000.heic"},
		{name: "no extension", want: "2023-11-15T10-30-05"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FileName(createdAt, tt.ext, tt.suffix); got != tt.want {
				t.Errorf("FileName() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDatePrefix(t *testing.T) {
	tests := []struct {
		name   string
		want   string
		wantOK bool
	}{
		{name: "2023-11-15T10-30-05R4821.jpg", want: "2023-11-15T10-30-05", wantOK: true},
		{name: "2023-11-15T10-30-05.png", want: "2023-11-15T10-30-05", wantOK: true},
		{name: "IMG_0001.jpg"},
		{name: "2023-13-15T10-30-05.jpg"},
		{name: "short.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DatePrefix(tt.name)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("DatePrefix() = %q, %v, want %q, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestDestination(t *testing.T) {
	dir := "/photos"

	tests := []struct {
		name     string
		filename string
		reserved map[string]bool
		onDisk   map[string]bool
		want     string
	}{
		{
			name:     "no collision",
			filename: "photo.jpg",
			reserved: map[string]bool{},
			want:     filepath.Join("/photos", "photo.jpg"),
		},
		{
			name:     "first collision gets _1",
			filename: "photo.jpg",
			reserved: map[string]bool{
				filepath.Join("/photos", "photo.jpg"): true,
			},
			want: filepath.Join("/photos", "photo_1.jpg"),
		},
		{
			name:     "existing file on disk counts as taken",
			filename: "photo.jpg",
			reserved: map[string]bool{
				filepath.Join("/photos", "photo.jpg"): true,
			},
			onDisk: map[string]bool{
				filepath.Join("/photos", "photo_1.jpg"): true,
			},
			want: filepath.Join("/photos", "photo_2.jpg"),
		},
		{
			name:     "file without extension with collision",
			filename: "README",
			reserved: map[string]bool{},
			onDisk: map[string]bool{
				filepath.Join("/photos", "README"): true,
			},
			want: filepath.Join("/photos", "README_1"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exists := func(p string) bool { return tt.onDisk[p] }
			got := Destination(dir, tt.filename, tt.reserved, exists)
			if got != tt.want {
				t.Errorf("Destination() = %v, want %v", got, tt.want)
			}
			if !tt.reserved[got] {
				t.Errorf("Destination() did not reserve %v", got)
			}
		})
	}
}

func TestPlan(t *testing.T) {
	sources := []string{
		"photos/IMG_1.jpg",
		"photos/IMG_2.PNG",
		"photos/2023-11-16T12-00-00R1234.jpg",
		"photos/no-date.jpg",
	}

	createdAtMap := map[string]time.Time{
		"photos/IMG_1.jpg":                    time.Date(2023, 11, 15, 10, 30, 0, 0, time.UTC),
		"photos/IMG_2.PNG":                    time.Date(2023, 11, 15, 10, 30, 1, 0, time.UTC),
		"photos/2023-11-16T12-00-00R1234.jpg": time.Date(2023, 11, 16, 12, 0, 0, 0, time.UTC),
	}

	suffixes := []int{1111, 2222}
	opts := Options{Suffix: func() int {
		s := suffixes[0]
		suffixes = suffixes[1:]
		return s
	}}

	operations := Plan(sources, createdAtMap, opts)

	expected := []Operation{
		{
			SourcePath:      "photos/IMG_1.jpg",
			DestinationPath: filepath.Join("photos", "2023-11-15T10-30-00R1111.jpg"),
		},
		{
			SourcePath:      "photos/IMG_2.PNG",
			DestinationPath: filepath.Join("photos", "2023-11-15T10-30-01R2222.png"),
		},
	}

	if len(operations) != len(expected) {
		t.Fatalf("Plan() returned %d operations, want %d: %#v", len(operations), len(expected), operations)
	}
	for i, op := range operations {
		if op != expected[i] {
			t.Errorf("operation %d = %#v, want %#v", i, op, expected[i])
		}
	}
}

func TestPlan_WithoutSuffixResolvesCollisions(t *testing.T) {
	createdAt := time.Date(2023, 11, 15, 10, 30, 0, 0, time.UTC)
	sources := []string{"photos/a.jpg", "photos/b.jpg", "photos/c.jpg"}
	createdAtMap := map[string]time.Time{
		"photos/a.jpg": createdAt,
		"photos/b.jpg": createdAt,
		"photos/c.jpg": createdAt,
	}

	onDisk := map[string]bool{filepath.Join("photos", "2023-11-15T10-30-00.jpg"): true}
	operations := Plan(sources, createdAtMap, Options{Exists: func(p string) bool { return onDisk[p] }})

	expected := []string{
		filepath.Join("photos", "2023-11-15T10-30-00_1.jpg"),
		filepath.Join("photos", "2023-11-15T10-30-00_2.jpg"),
		filepath.Join("photos", "2023-11-15T10-30-00_3.jpg"),
	}

	if len(operations) != 3 {
		t.Fatalf("Plan() returned %d operations, want 3", len(operations))
	}
	for i, op := range operations {
		if op.DestinationPath != expected[i] {
			t.Errorf("operation %d: DestinationPath = %v, want %v", i, op.DestinationPath, expected[i])
		}
	}
}
