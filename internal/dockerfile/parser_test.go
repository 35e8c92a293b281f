package dockerfile

import (
	"reflect"
	"testing"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want ImageRef
		ok   bool
	}{
		{
			name: "plain image with tag",
			line: "FROM nginx:1.23.0",
			want: ImageRef{Name: "nginx", Tag: "1.23.0"},
			ok:   true,
		},
		{
			name: "no tag defaults to latest",
			line: "FROM nginx",
			want: ImageRef{Name: "nginx", Tag: "latest"},
			ok:   true,
		},
		{
			name: "namespaced image without registry",
			line: "FROM bitnami/redis:7.0.5",
			want: ImageRef{Name: "bitnami/redis", Tag: "7.0.5"},
			ok:   true,
		},
		{
			name: "explicit registry",
			line: "FROM registry.access.redhat.com/ubi8/python-39:1.14.0",
			want: ImageRef{Name: "ubi8/python-39", Tag: "1.14.0", Registry: "registry.access.redhat.com"},
			ok:   true,
		},
		{
			name: "registry with deep namespace",
			line: "FROM ghcr.io/acme/tools/builder:2.1",
			want: ImageRef{Name: "acme/tools/builder", Tag: "2.1", Registry: "ghcr.io"},
			ok:   true,
		},
		{
			name: "registry with port",
			line: "FROM localhost:5000/myapp/api:0.3.0",
			want: ImageRef{Name: "myapp/api", Tag: "0.3.0", Registry: "localhost:5000"},
			ok:   true,
		},
		{
			name: "multi-stage alias stripped",
			line: "FROM node:16.20.0-alpine AS builder",
			want: ImageRef{Name: "node", Tag: "16.20.0-alpine"},
			ok:   true,
		},
		{
			name: "lowercase as alias stripped",
			line: "FROM golang:1.21 as build",
			want: ImageRef{Name: "golang", Tag: "1.21"},
			ok:   true,
		},
		{
			name: "leading whitespace tolerated",
			line: "   FROM alpine:3.18",
			want: ImageRef{Name: "alpine", Tag: "3.18"},
			ok:   true,
		},
		{
			name: "scratch skipped",
			line: "FROM scratch",
			ok:   false,
		},
		{
			name: "scratch skipped case-insensitively",
			line: "FROM SCRATCH",
			ok:   false,
		},
		{
			name: "build arg skipped",
			line: "FROM $BASE_IMAGE",
			ok:   false,
		},
		{
			name: "build arg with default skipped",
			line: "FROM ${BASE:-alpine}",
			ok:   false,
		},
		{
			name: "lowercase from is not an instruction",
			line: "from nginx:1.23.0",
			ok:   false,
		},
		{
			name: "unrelated instruction",
			line: "RUN apt-get update",
			ok:   false,
		},
		{
			name: "FROM inside a comment is not trimmed to a candidate",
			line: "# FROM nginx:1.0",
			ok:   false,
		},
		{
			name: "bare stage alias parses as image name",
			line: "FROM builder",
			want: ImageRef{Name: "builder", Tag: "latest"},
			ok:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseLine(tt.line)
			if ok != tt.ok {
				t.Fatalf("ParseLine(%q) ok = %v, want %v", tt.line, ok, tt.ok)
			}
			if ok && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseLine(%q) = %+v, want %+v", tt.line, got, tt.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	content := `# build stage
FROM node:16.20.0-alpine AS builder
RUN npm ci

FROM scratch
FROM $RUNTIME
FROM nginx:1.23.0
`
	got := Parse(content)
	want := []ImageRef{
		{Name: "node", Tag: "16.20.0-alpine", Line: 2},
		{Name: "nginx", Tag: "1.23.0", Line: 7},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Parse() = %+v, want %+v", got, want)
	}
}

func TestParseSkipsAllNonConcreteRefs(t *testing.T) {
	got := Parse("FROM scratch\nFROM $X\nFROM ${X:-y}")
	if len(got) != 0 {
		t.Errorf("Parse() = %+v, want empty", got)
	}
}

func TestParsePreservesSourceOrder(t *testing.T) {
	content := "FROM a:1\nFROM b:2\nFROM c:3"
	got := Parse(content)
	if len(got) != 3 {
		t.Fatalf("Parse() returned %d refs, want 3", len(got))
	}
	for i, name := range []string{"a", "b", "c"} {
		if got[i].Name != name {
			t.Errorf("refs[%d].Name = %q, want %q", i, got[i].Name, name)
		}
		if got[i].Line != i+1 {
			t.Errorf("refs[%d].Line = %d, want %d", i, got[i].Line, i+1)
		}
	}
}

func TestImageRefString(t *testing.T) {
	tests := []struct {
		ref  ImageRef
		want string
	}{
		{ImageRef{Name: "nginx", Tag: "1.23.0"}, "nginx:1.23.0"},
		{ImageRef{Name: "ubi8/python-39", Tag: "1.14.0", Registry: "registry.access.redhat.com"}, "registry.access.redhat.com/ubi8/python-39:1.14.0"},
	}
	for _, tt := range tests {
		if got := tt.ref.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
