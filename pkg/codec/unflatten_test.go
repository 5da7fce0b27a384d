package codec

import (
	"math"
	"reflect"
	"testing"

	"github.com/matzehuels/weft/pkg/errors"
	"github.com/matzehuels/weft/pkg/wire"
)

func mustUnflatten(t *testing.T, line string, opts *Options) any {
	t.Helper()
	table, err := wire.ParseLine([]byte(line))
	if err != nil {
		t.Fatalf("ParseLine(%s) error = %v", line, err)
	}
	v, err := Unflatten(table, opts)
	if err != nil {
		t.Fatalf("Unflatten(%s) error = %v", line, err)
	}
	return v
}

func TestUnflattenSentinels(t *testing.T) {
	if got := mustUnflatten(t, "-1", nil); got != Absent {
		t.Errorf("document -1 = %v, want Absent", got)
	}
	if got := mustUnflatten(t, "-2", nil); got != Hole {
		t.Errorf("document -2 = %v, want Hole", got)
	}

	list := mustUnflatten(t, "[[-1,-2,-3,-4,-5,-6]]", nil).([]any)
	if list[0] != Absent || list[1] != Hole {
		t.Errorf("markers = %v, %v", list[0], list[1])
	}
	if !math.IsNaN(list[2].(float64)) {
		t.Errorf("element 2 = %v, want NaN", list[2])
	}
	if !math.IsInf(list[3].(float64), 1) || !math.IsInf(list[4].(float64), -1) {
		t.Errorf("infinities = %v, %v", list[3], list[4])
	}
	if z := list[5].(float64); z != 0 || !math.Signbit(z) {
		t.Errorf("element 5 = %v, want negative zero", z)
	}
}

func TestUnflattenSharing(t *testing.T) {
	outer := mustUnflatten(t, `[[1,1],[2],"x"]`, nil).([]any)
	a := reflect.ValueOf(outer[0]).Pointer()
	b := reflect.ValueOf(outer[1]).Pointer()
	if a != b {
		t.Error("aliased parts decoded to distinct slices")
	}
}

func TestUnflattenCycle(t *testing.T) {
	m := mustUnflatten(t, `[{"self":0}]`, nil).(map[string]any)
	self, ok := m["self"].(map[string]any)
	if !ok {
		t.Fatalf("self is %T, want map", m["self"])
	}
	if reflect.ValueOf(m).Pointer() != reflect.ValueOf(self).Pointer() {
		t.Error("cycle not reconstructed as the same map")
	}
}

func TestUnflattenOrderedContainers(t *testing.T) {
	s := mustUnflatten(t, `[["Set",1,2],"b","a"]`, nil).(*Set)
	if got := s.Values(); !reflect.DeepEqual(got, []any{"b", "a"}) {
		t.Errorf("set values = %v, want wire order", got)
	}

	m := mustUnflatten(t, `[["Map",1,2,3,4],"k1",1,"k2",2]`, nil).(*Map)
	entries := m.Entries()
	if len(entries) != 2 || entries[0].Key != "k1" || entries[1].Key != "k2" {
		t.Errorf("map entries = %v", entries)
	}
}

func TestUnflattenRemoteError(t *testing.T) {
	v := mustUnflatten(t, `[["Error","boom"]]`, nil)
	re, ok := v.(*RemoteError)
	if !ok {
		t.Fatalf("value is %T, want *RemoteError", v)
	}
	if re.Error() != "boom" {
		t.Errorf("message = %q, want boom", re.Error())
	}
}

func TestUnflattenRejects(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		opts     *Options
		wantCode errors.Code
	}{
		{
			name:     "proto key",
			line:     `[{"__proto__":1},1]`,
			wantCode: errors.ErrCodeProtoKey,
		},
		{
			name:     "constructor key",
			line:     `[{"constructor":1},1]`,
			wantCode: errors.ErrCodeProtoKey,
		},
		{
			name:     "unknown tag",
			line:     `[["Widget",1],1]`,
			wantCode: errors.ErrCodeUnknownTag,
		},
		{
			name:     "pending tag outside a stream session",
			line:     `[["PendingSingle",1]]`,
			wantCode: errors.ErrCodeUnknownTag,
		},
		{
			name:     "view over non-buffer",
			line:     `[["Float32Array",1],5]`,
			wantCode: errors.ErrCodeMalformedTable,
		},
		{
			name:     "bad date payload",
			line:     `[["Date","not a date"]]`,
			wantCode: errors.ErrCodeMalformedTable,
		},
		{
			name:     "bad bigint payload",
			line:     `[["BigInt","12x"]]`,
			wantCode: errors.ErrCodeMalformedTable,
		},
		{
			name:     "odd map arity",
			line:     `[["Map",1],1]`,
			wantCode: errors.ErrCodeMalformedTable,
		},
		{
			name: "cycle through custom tag",
			line: `[["Wrapper",0]]`,
			opts: &Options{Revivers: []Reviver{{
				Tag:    "Wrapper",
				Revive: func(inner any) (any, error) { return inner, nil },
			}}},
			wantCode: errors.ErrCodeMalformedTable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := wire.ParseLine([]byte(tt.line))
			if err != nil {
				t.Fatalf("ParseLine() error = %v", err)
			}
			_, err = Unflatten(table, tt.opts)
			if err == nil {
				t.Fatal("Unflatten() succeeded, want error")
			}
			if !errors.Is(err, tt.wantCode) {
				t.Errorf("code = %v, want %v", errors.GetCode(err), tt.wantCode)
			}
		})
	}
}

func TestUnflattenDanglingRef(t *testing.T) {
	table := &wire.Table{Parts: []wire.Part{wire.Refs{5}}}
	_, err := Unflatten(table, nil)
	if !errors.Is(err, errors.ErrCodeMalformedTable) {
		t.Errorf("code = %v, want MALFORMED_TABLE", errors.GetCode(err))
	}
}
