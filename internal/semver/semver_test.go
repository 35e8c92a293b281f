package semver

import (
	"errors"
	"reflect"
	"testing"
)

func TestIsSemantic(t *testing.T) {
	tests := []struct {
		tag  string
		want bool
	}{
		{"1.2.3", true},
		{"v1.2.3", true},
		{"1.2", true},
		{"1.2.3-alpine", true},
		{"2.0.0-rc1", true},
		{"3.11-slim", true},
		{"16.20.0-alpine3.18", true},
		{"latest", false},
		{"alpine", false},
		{"main", false},
		{"stable", false},
		{"1", false},
		{"", false},
		{"1.2.3.4", false},
		{"feature-branch", false},
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			if got := IsSemantic(tt.tag); got != tt.want {
				t.Errorf("IsSemantic(%q) = %v, want %v", tt.tag, got, tt.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		tag  string
		want Version
		ok   bool
	}{
		{
			tag:  "1.2.3",
			want: Version{Major: 1, Minor: 2, Patch: 3, Original: "1.2.3"},
			ok:   true,
		},
		{
			tag:  "v3.11.0",
			want: Version{Major: 3, Minor: 11, Patch: 0, Original: "v3.11.0"},
			ok:   true,
		},
		{
			tag:  "1.2",
			want: Version{Major: 1, Minor: 2, Patch: 0, Original: "1.2"},
			ok:   true,
		},
		{
			tag:  "16.20.0-alpine",
			want: Version{Major: 16, Minor: 20, Patch: 0, Suffix: "alpine", Original: "16.20.0-alpine"},
			ok:   true,
		},
		{
			tag: "latest",
			ok:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			got, ok := Parse(tt.tag)
			if ok != tt.ok {
				t.Fatalf("Parse(%q) ok = %v, want %v", tt.tag, ok, tt.ok)
			}
			if ok && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.tag, got, tt.want)
			}
		})
	}
}

func TestLatest(t *testing.T) {
	tests := []struct {
		name    string
		tags    []string
		want    string
		wantErr error
	}{
		{
			name: "simple ascending",
			tags: []string{"1.2.3", "1.2.4", "1.3.0", "2.0.0"},
			want: "2.0.0",
		},
		{
			name: "numeric not lexicographic",
			tags: []string{"v3.9.0", "v3.9.1", "v3.11.0"},
			want: "v3.11.0",
		},
		{
			name: "original spelling preserved",
			tags: []string{"v1.0.0", "v2.0.0"},
			want: "v2.0.0",
		},
		{
			name: "missing patch defaults to zero",
			tags: []string{"1.2", "1.2.1"},
			want: "1.2.1",
		},
		{
			name: "non-semantic tags ignored",
			tags: []string{"latest", "alpine", "1.0.0", "main"},
			want: "1.0.0",
		},
		{
			name: "bare tag wins tie over suffixed",
			tags: []string{"1.2.3-alpine", "1.2.3"},
			want: "1.2.3",
		},
		{
			name: "bare tag keeps winning when listed first",
			tags: []string{"1.2.3", "1.2.3-alpine"},
			want: "1.2.3",
		},
		{
			name: "equal suffixed tuples keep input order",
			tags: []string{"1.2.3-alpine", "1.2.3-slim"},
			want: "1.2.3-alpine",
		},
		{
			name:    "empty input",
			tags:    nil,
			wantErr: ErrNoVersions,
		},
		{
			name:    "only non-semantic tags",
			tags:    []string{"latest", "edge"},
			wantErr: ErrNoVersions,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Latest(tt.tags)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Latest() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Latest() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Latest(%v) = %q, want %q", tt.tags, got, tt.want)
			}
		})
	}
}

func TestLatestNumeric(t *testing.T) {
	tests := []struct {
		name    string
		tags    []string
		want    string
		wantErr error
	}{
		{
			name: "greatest whole number",
			tags: []string{"16", "18", "20", "9"},
			want: "20",
		},
		{
			name: "non-numeric skipped",
			tags: []string{"lts", "20", "current"},
			want: "20",
		},
		{
			name:    "nothing numeric",
			tags:    []string{"lts", "current"},
			wantErr: ErrNoVersions,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LatestNumeric(tt.tags)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("LatestNumeric() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("LatestNumeric() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("LatestNumeric(%v) = %q, want %q", tt.tags, got, tt.want)
			}
		})
	}
}
