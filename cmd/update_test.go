package cmd

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/smazurov/camrelay/internal/updater"
)

type stubUpdater struct {
	info     *updater.UpdateInfo
	err      error
	rollback string
}

func (s *stubUpdater) Check(context.Context) (*updater.UpdateInfo, error) { return s.info, s.err }
func (s *stubUpdater) Apply(context.Context) (*updater.UpdateInfo, error) { return s.info, s.err }
func (s *stubUpdater) Rollback() (string, error)                          { return s.rollback, s.err }

func TestRunUpdate(t *testing.T) {
	current := &updater.UpdateInfo{CurrentVersion: "v1.2.0", LatestVersion: "v1.2.0"}
	newer := &updater.UpdateInfo{
		CurrentVersion:  "v1.2.0",
		LatestVersion:   "v1.3.0",
		ReleaseURL:      "https://github.com/smazurov/camrelay/releases/tag/v1.3.0",
		UpdateAvailable: true,
	}
	noUpdate := &updater.Error{Code: updater.ErrCodeNoUpdate, Message: "already running v1.2.0"}

	tests := []struct {
		name     string
		upd      *stubUpdater
		apply    bool
		rollback bool
		want     string
		wantErr  bool
	}{
		{name: "check up to date", upd: &stubUpdater{info: current}, want: "up to date (v1.2.0)"},
		{name: "check newer", upd: &stubUpdater{info: newer}, want: "update available: v1.2.0 -> v1.3.0"},
		{name: "check failure", upd: &stubUpdater{err: errors.New("offline")}, wantErr: true},
		{name: "apply", upd: &stubUpdater{info: newer}, apply: true, want: "updated v1.2.0 -> v1.3.0"},
		{name: "apply no update", upd: &stubUpdater{info: current, err: noUpdate}, apply: true, want: "already up to date"},
		{name: "rollback", upd: &stubUpdater{rollback: "v1.1.0"}, rollback: true, want: "restored v1.1.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := runUpdate(context.Background(), &out, tt.upd, tt.apply, tt.rollback)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("runUpdate: %v", err)
			}
			if !strings.Contains(out.String(), tt.want) {
				t.Errorf("output %q does not contain %q", out.String(), tt.want)
			}
		})
	}
}

func TestUpdateCmdRejectsConflictingFlags(t *testing.T) {
	cmd := CreateUpdateCmd()
	cmd.SetArgs([]string{"--apply", "--rollback"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for --apply with --rollback")
	}
}
