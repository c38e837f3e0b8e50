package directive

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   []Directive
	}{
		{
			name:   "single",
			source: "uniform sampler2D tex; // ./a.png\nvoid main(){}",
			want:   []Directive{{ID: "tex", Path: "./a.png"}},
		},
		{
			name: "several in order",
			source: "precision highp float;\n" +
				"uniform sampler2D b; // ../img/b.jpg\n" +
				"uniform sampler2D a;//a.png   \n" +
				"void main(){}\n",
			want: []Directive{{ID: "b", Path: "../img/b.jpg"}, {ID: "a", Path: "a.png"}},
		},
		{
			name:   "crlf line endings",
			source: "uniform sampler2D tex; // a.png\r\nvoid main(){}\r\n",
			want:   []Directive{{ID: "tex", Path: "a.png"}},
		},
		{
			name:   "no comment",
			source: "uniform sampler2D tex;\nvoid main(){}",
		},
		{
			name:   "comment on next line",
			source: "uniform sampler2D tex;\n// a.png\n",
		},
		{
			name:   "indented",
			source: "  uniform sampler2D tex; // a.png\n",
		},
		{
			name:   "other sampler type",
			source: "uniform samplerCube sky; // sky.png\n",
		},
		{
			name:   "doubled semicolon",
			source: "uniform sampler2D tex;; // a.png\n",
		},
		{
			name:   "not an identifier",
			source: "uniform sampler2D 2tex; // a.png\nuniform sampler2D t[2]; // b.png\n",
		},
		{
			name:   "empty path",
			source: "uniform sampler2D tex; //   \n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.source))
		})
	}
}

func TestDedupeLastWins(t *testing.T) {
	in := []Directive{
		{ID: "a", Path: "1.png"},
		{ID: "b", Path: "2.png"},
		{ID: "a", Path: "3.png"},
	}
	assert.Equal(t, []Directive{{ID: "b", Path: "2.png"}, {ID: "a", Path: "3.png"}}, Dedupe(in))

	unique := []Directive{{ID: "a", Path: "1.png"}, {ID: "b", Path: "2.png"}}
	assert.Equal(t, unique, Dedupe(unique))
}

func TestDiff(t *testing.T) {
	a := Directive{ID: "a", Path: "a.png"}
	b := Directive{ID: "b", Path: "b.png"}
	c := Directive{ID: "c", Path: "c.png"}
	a2 := Directive{ID: "a", Path: "other.png"}

	tests := []struct {
		name      string
		old, next []Directive
		unbind    []Directive
		bind      []Directive
	}{
		{name: "initial", next: []Directive{a, b}, bind: []Directive{a, b}},
		{name: "unchanged", old: []Directive{a, b}, next: []Directive{a, b}},
		{name: "reordered", old: []Directive{a, b}, next: []Directive{b, a}},
		{name: "removed", old: []Directive{a, b}, next: []Directive{b}, unbind: []Directive{a}},
		{name: "added", old: []Directive{a}, next: []Directive{a, c}, bind: []Directive{c}},
		{name: "path changed", old: []Directive{a, b}, next: []Directive{a2, b}, unbind: []Directive{a}, bind: []Directive{a2}},
		{name: "all removed", old: []Directive{a, b, c}, unbind: []Directive{a, b, c}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unbind, bind := Diff(tt.old, tt.next)
			assert.Equal(t, tt.unbind, unbind)
			assert.Equal(t, tt.bind, bind)
		})
	}
}

func TestDiffDroppedDirective(t *testing.T) {
	before := Parse("uniform sampler2D tex; // ./a.png\nvoid main(){}")
	after := Parse("void main(){}")
	unbind, bind := Diff(before, after)
	assert.Equal(t, []Directive{{ID: "tex", Path: "./a.png"}}, unbind)
	assert.Empty(t, bind)
}
