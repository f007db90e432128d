package viewstate

import (
	"os"
	"testing"

	"github.com/google/uuid"
)

func TestWriteFileReadFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	vs := ViewState{
		MyUUID: uuid.New(),
		View: ViewID{
			Type: 'P',
			UUID: uuid.New(),
			Seq:  7,
		},
		Bootstrap: true,
		Members: []Member{
			{UUID: uuid.New(), SegmentID: 0},
			{UUID: uuid.New(), SegmentID: 1},
		},
	}

	if err := WriteFile(dir, vs); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := ReadFile(dir)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got.MyUUID != vs.MyUUID {
		t.Fatalf("MyUUID = %v, want %v", got.MyUUID, vs.MyUUID)
	}
	if got.View != vs.View {
		t.Fatalf("View = %+v, want %+v", got.View, vs.View)
	}
	if got.Bootstrap != vs.Bootstrap {
		t.Fatalf("Bootstrap = %v, want %v", got.Bootstrap, vs.Bootstrap)
	}
	if len(got.Members) != len(vs.Members) {
		t.Fatalf("Members = %v, want %v", got.Members, vs.Members)
	}
	for i := range vs.Members {
		if got.Members[i] != vs.Members[i] {
			t.Fatalf("Members[%d] = %+v, want %+v", i, got.Members[i], vs.Members[i])
		}
	}
}

func TestReadFileAcceptsMinimalNonPrimaryView(t *testing.T) {
	dir := t.TempDir()
	vs := ViewState{MyUUID: uuid.New(), View: ViewID{Type: 'N', UUID: uuid.New(), Seq: 0}}
	if err := WriteFile(dir, vs); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := ReadFile(dir); err != nil {
		t.Fatalf("ReadFile of a minimal non-primary view: %v", err)
	}
}

func TestWriteFileIsAtomicNoPartialTempLeftBehind(t *testing.T) {
	dir := t.TempDir()
	vs := ViewState{MyUUID: uuid.New(), View: ViewID{Type: 'P', UUID: uuid.New(), Seq: 1}}
	if err := WriteFile(dir, vs); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := os.Stat(Path(dir) + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind after WriteFile: stat err = %v", err)
	}
	if _, err := ReadFile(dir); err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
}
