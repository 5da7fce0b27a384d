package codec

import (
	"strings"
	"testing"

	"github.com/matzehuels/weft/pkg/errors"
)

func noopReduce(any) (any, bool)  { return nil, false }
func noopRevive(any) (any, error) { return nil, nil }

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name     string
		opts     *Options
		wantCode errors.Code
	}{
		{
			name: "nil options",
			opts: nil,
		},
		{
			name: "valid custom tags",
			opts: &Options{
				Reducers: []Reducer{{Tag: "Point", Reduce: noopReduce}},
				Revivers: []Reviver{{Tag: "Point", Revive: noopRevive}},
			},
		},
		{
			name:     "empty tag",
			opts:     &Options{Reducers: []Reducer{{Tag: "", Reduce: noopReduce}}},
			wantCode: errors.ErrCodeInvalidTag,
		},
		{
			name:     "oversized tag",
			opts:     &Options{Reducers: []Reducer{{Tag: strings.Repeat("x", 129), Reduce: noopReduce}}},
			wantCode: errors.ErrCodeInvalidTag,
		},
		{
			name:     "tag with whitespace",
			opts:     &Options{Reducers: []Reducer{{Tag: "my tag", Reduce: noopReduce}}},
			wantCode: errors.ErrCodeInvalidTag,
		},
		{
			name:     "shadows builtin tag",
			opts:     &Options{Revivers: []Reviver{{Tag: "Map", Revive: noopRevive}}},
			wantCode: errors.ErrCodeInvalidTag,
		},
		{
			name:     "shadows view kind",
			opts:     &Options{Revivers: []Reviver{{Tag: "Uint8Array", Revive: noopRevive}}},
			wantCode: errors.ErrCodeInvalidTag,
		},
		{
			name: "duplicate reducer tag",
			opts: &Options{Reducers: []Reducer{
				{Tag: "Point", Reduce: noopReduce},
				{Tag: "Point", Reduce: noopReduce},
			}},
			wantCode: errors.ErrCodeInvalidTag,
		},
		{
			name:     "reducer missing function",
			opts:     &Options{Reducers: []Reducer{{Tag: "Point"}}},
			wantCode: errors.ErrCodeInvalidTag,
		},
		{
			name:     "reviver missing function",
			opts:     &Options{Revivers: []Reviver{{Tag: "Point"}}},
			wantCode: errors.ErrCodeInvalidTag,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.validate()
			if tt.wantCode == "" {
				if err != nil {
					t.Errorf("validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantCode) {
				t.Errorf("code = %v, want %v", errors.GetCode(err), tt.wantCode)
			}
		})
	}
}

func TestReducerOrder(t *testing.T) {
	opts := &Options{Reducers: []Reducer{
		{Tag: "First", Reduce: func(v any) (any, bool) {
			_, ok := v.(point)
			return "first", ok
		}},
		{Tag: "Second", Reduce: func(v any) (any, bool) {
			_, ok := v.(point)
			return "second", ok
		}},
	}}

	got := mustLine(t, point{}, opts)
	want := `[["First",1],"first"]`
	if got != want {
		t.Errorf("line = %s, want %s", got, want)
	}
}
