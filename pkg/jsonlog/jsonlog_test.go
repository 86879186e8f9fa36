package jsonlog

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/opsdb/core/pkg/errs"
)

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")

	l, err := Open(path, StandaloneMagic, ModeCreateExclusive, LockNo)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	records := []string{`{"a":1}`, `{"b":"two"}`, `{"c":[1,2,3]}`}
	for _, r := range records {
		if err := l.Write(json.RawMessage(r)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := l.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	l2, err := Open(path, StandaloneMagic, ModeReadOnly, LockNo)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer l2.Close()

	for i, want := range records {
		got, err := l2.Read()
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if string(got) != want {
			t.Errorf("record %d = %s, want %s", i, got, want)
		}
	}
	if _, err := l2.Read(); err != io.EOF {
		t.Errorf("expected io.EOF after last record, got %v", err)
	}
}

func TestUnreadPushesRecordBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	l, err := Open(path, StandaloneMagic, ModeCreateExclusive, LockNo)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	l.Write(json.RawMessage(`{"x":1}`))
	l.Write(json.RawMessage(`{"y":2}`))
	l.Commit()
	l.Close()

	l2, _ := Open(path, StandaloneMagic, ModeReadOnly, LockNo)
	defer l2.Close()

	first, err := l2.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	l2.Unread(first)

	again, err := l2.Read()
	if err != nil {
		t.Fatalf("read after unread: %v", err)
	}
	if string(again) != string(first) {
		t.Errorf("unread record = %s, want %s", again, first)
	}

	second, err := l2.Read()
	if err != nil {
		t.Fatalf("read second: %v", err)
	}
	if string(second) != `{"y":2}` {
		t.Errorf("second record = %s", second)
	}
}

func TestCreateExclusiveFailsIfExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	l, err := Open(path, StandaloneMagic, ModeCreateExclusive, LockNo)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	l.Close()

	if _, err := Open(path, StandaloneMagic, ModeCreateExclusive, LockNo); err == nil {
		t.Fatal("expected error opening existing path exclusively")
	}
}

func TestChecksumMismatchIsIOError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	l, _ := Open(path, StandaloneMagic, ModeCreateExclusive, LockNo)
	l.Write(json.RawMessage(`{"a":1}`))
	l.Commit()
	l.Close()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	// Flip a byte inside the payload, after the header line.
	idx := -1
	for i, b := range raw {
		if b == '\n' {
			idx = i + 1
			break
		}
	}
	if idx < 0 || idx >= len(raw) {
		t.Fatal("could not locate payload")
	}
	raw[idx] = '9'
	if err := os.WriteFile(path, raw, 0644); err != nil {
		t.Fatalf("rewrite file: %v", err)
	}

	l2, _ := Open(path, StandaloneMagic, ModeReadOnly, LockNo)
	defer l2.Close()
	_, err = l2.Read()
	if !errs.Is(err, errs.KindIO) {
		t.Fatalf("expected KindIO error, got %v", err)
	}
}

func TestTailTruncationStopsCleanly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	l, _ := Open(path, StandaloneMagic, ModeCreateExclusive, LockNo)
	l.Write(json.RawMessage(`{"a":1}`))
	l.Write(json.RawMessage(`{"b":2}`))
	l.Commit()
	l.Close()

	info, _ := os.Stat(path)
	if err := os.Truncate(path, info.Size()-1); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	l2, _ := Open(path, StandaloneMagic, ModeReadOnly, LockNo)
	defer l2.Close()

	first, err := l2.Read()
	if err != nil {
		t.Fatalf("read first: %v", err)
	}
	if string(first) != `{"a":1}` {
		t.Errorf("first = %s", first)
	}
	if _, err := l2.Read(); err == nil {
		t.Fatal("expected an error reading the truncated second record")
	}
}

func TestReplaceStartAndCommit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	l, _ := Open(path, StandaloneMagic, ModeCreateExclusive, LockNo)
	l.Write(json.RawMessage(`{"old":true}`))
	l.Commit()

	newLog, err := l.ReplaceStart()
	if err != nil {
		t.Fatalf("replace start: %v", err)
	}
	if err := newLog.Write(json.RawMessage(`{"new":true}`)); err != nil {
		t.Fatalf("write to replacement: %v", err)
	}
	if err := l.ReplaceCommit(newLog); err != nil {
		t.Fatalf("replace commit: %v", err)
	}
	l.Close()

	l2, err := Open(path, StandaloneMagic, ModeReadOnly, LockNo)
	if err != nil {
		t.Fatalf("reopen after replace: %v", err)
	}
	defer l2.Close()

	got, err := l2.Read()
	if err != nil {
		t.Fatalf("read replaced record: %v", err)
	}
	if string(got) != `{"new":true}` {
		t.Errorf("got %s, want replacement record", got)
	}
	if _, err := l2.Read(); err != io.EOF {
		t.Errorf("expected exactly one record after replace, got err=%v", err)
	}
}

func TestLockingPreventsSecondWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	l1, err := Open(path, StandaloneMagic, ModeCreateExclusive, LockYes)
	if err != nil {
		t.Fatalf("open first: %v", err)
	}
	defer l1.Close()

	_, err = Open(path, StandaloneMagic, ModeReadWrite, LockYes)
	if err == nil {
		t.Fatal("expected second locked opener to fail")
	}
}
