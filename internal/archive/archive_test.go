package archive

import (
	"context"
	"testing"
	"time"

	draptolib "github.com/five82/drapto"
)

func TestOutputPath(t *testing.T) {
	cases := []struct{ in, dir, want string }{
		{"/store/a/exports/cut_20260101_120000.mp4", "/archive", "/archive/cut_20260101_120000.mkv"},
		{"/x/noext", " /archive ", "/archive/noext.mkv"},
	}
	for _, tc := range cases {
		if got := OutputPath(tc.in, tc.dir); got != tc.want {
			t.Errorf("OutputPath(%q, %q) = %q, want %q", tc.in, tc.dir, got, tc.want)
		}
	}
}

func TestEncodeValidatesArguments(t *testing.T) {
	lib := NewLibrary()
	if _, err := lib.Encode(context.Background(), "", "/tmp", nil); err == nil {
		t.Fatal("expected error for empty input")
	}
	if _, err := lib.Encode(context.Background(), "/tmp/in.mp4", "  ", nil); err == nil {
		t.Fatal("expected error for empty output dir")
	}
}

func TestReporterForwardsProgress(t *testing.T) {
	var got []Progress
	rep := &reporter{callback: func(p Progress) { got = append(got, p) }}

	eta := 30 * time.Second
	rep.StageProgress(draptolib.StageProgress{Stage: "analysis", Percent: 40, Message: "crop", ETA: &eta})
	rep.Warning("slow disk")
	rep.Hardware(draptolib.HardwareSummary{Hostname: "box"})
	rep.OperationComplete("done")

	if len(got) != 3 {
		t.Fatalf("expected 3 updates, got %d: %+v", len(got), got)
	}
	if got[0].Stage != "analysis" || got[0].Percent != 40 || got[0].ETA != eta {
		t.Fatalf("unexpected stage update %+v", got[0])
	}
	if got[1].Warning != "slow disk" {
		t.Fatalf("unexpected warning %+v", got[1])
	}
	if got[2].Percent != 100 || got[2].Message != "done" {
		t.Fatalf("unexpected completion %+v", got[2])
	}
}
