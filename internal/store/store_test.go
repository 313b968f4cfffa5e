package store

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/0x6d61/sentinel/internal/entity"
	"github.com/0x6d61/sentinel/pkg/schema"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "sentinel.db"), nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func hostEntity(addr string) entity.Entity {
	return entity.Entity{
		ID:         entity.HostID(addr),
		Type:       entity.TypeHost,
		Confidence: 1.0,
		Data:       entity.HostData{Addr: addr, State: "up"},
	}
}

// TestUpsertAndGet は保存したエンティティがペイロード込みで読み戻せることをテストする。
func TestUpsertAndGet(t *testing.T) {
	s := openTestStore(t)

	n, err := s.UpsertEntities([]entity.Entity{hostEntity("192.168.1.10")})
	if err != nil {
		t.Fatalf("UpsertEntities failed: %v", err)
	}
	if n != 1 {
		t.Errorf("n = %d, want 1", n)
	}

	got, err := s.GetEntity("host_192_168_1_10")
	if err != nil {
		t.Fatalf("GetEntity failed: %v", err)
	}
	data, ok := got.Data.(entity.HostData)
	if !ok {
		t.Fatalf("Data type = %T", got.Data)
	}
	if data.Addr != "192.168.1.10" || data.State != "up" {
		t.Errorf("data = %+v", data)
	}

	if _, err := s.GetEntity("host_nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing entity error = %v, want ErrNotFound", err)
	}
}

// TestUpsertReplacesPayload は upsert がペイロードを置き換え first_seen を保持することをテストする。
func TestUpsertReplacesPayload(t *testing.T) {
	s := openTestStore(t)

	t1 := time.Now().Add(-time.Hour)
	t2 := time.Now()

	first := hostEntity("10.0.0.1")
	first.UpdatedAt = t1
	if _, err := s.UpsertEntities([]entity.Entity{first}); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}

	second := hostEntity("10.0.0.1")
	second.Data = entity.HostData{Addr: "10.0.0.1", State: "up", OS: "Linux 5.4"}
	second.UpdatedAt = t2
	if _, err := s.UpsertEntities([]entity.Entity{second}); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	got, err := s.GetEntity("host_10_0_0_1")
	if err != nil {
		t.Fatalf("GetEntity failed: %v", err)
	}
	if data := got.Data.(entity.HostData); data.OS != "Linux 5.4" {
		t.Errorf("payload not replaced: %+v", data)
	}
	if got.FirstSeen.Unix() != t1.Unix() {
		t.Errorf("FirstSeen = %v, want preserved %v", got.FirstSeen, t1)
	}
	if got.UpdatedAt.Unix() != t2.Unix() {
		t.Errorf("UpdatedAt = %v, want bumped %v", got.UpdatedAt, t2)
	}
}

// TestUpsertBatchAtomic はバッチ途中の失敗で何も書き込まれないことをテストする。
func TestUpsertBatchAtomic(t *testing.T) {
	s := openTestStore(t)

	bad := hostEntity("10.0.0.2")
	bad.Attrs = map[string]any{"broken": make(chan int)} // JSON エンコード不能

	_, err := s.UpsertEntities([]entity.Entity{hostEntity("10.0.0.1"), bad})
	if err == nil {
		t.Fatal("batch with unencodable entity should fail")
	}

	if _, err := s.GetEntity("host_10_0_0_1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("first entity should have been rolled back, got err = %v", err)
	}
}

// TestRelationships はリレーションの冪等性と Children クエリをテストする。
func TestRelationships(t *testing.T) {
	s := openTestStore(t)

	host := hostEntity("10.0.0.1")
	port := entity.Entity{
		ID:       entity.PortID(host.ID, 80, "tcp"),
		Type:     entity.TypePort,
		ParentID: host.ID,
		Data:     entity.PortData{Number: 80, Proto: "tcp", State: "open"},
	}
	if _, err := s.UpsertEntities([]entity.Entity{host, port}); err != nil {
		t.Fatalf("UpsertEntities failed: %v", err)
	}

	rel := entity.Relationship{SourceID: host.ID, TargetID: port.ID, Kind: "has_port"}
	for i := 0; i < 3; i++ {
		if err := s.AddRelationship(rel); err != nil {
			t.Fatalf("AddRelationship failed: %v", err)
		}
	}

	children, err := s.Children(host.ID, "has_port")
	if err != nil {
		t.Fatalf("Children failed: %v", err)
	}
	if len(children) != 1 {
		t.Fatalf("children = %d, want 1 (relationship must be idempotent)", len(children))
	}
	if children[0].ID != port.ID {
		t.Errorf("child = %q, want %q", children[0].ID, port.ID)
	}
}

// TestPrune は updated_at の古いエンティティだけが削除されることをテストする。
func TestPrune(t *testing.T) {
	s := openTestStore(t)

	stale := hostEntity("10.0.0.1")
	stale.UpdatedAt = time.Now().Add(-2 * time.Hour)
	fresh := hostEntity("10.0.0.2")
	fresh.UpdatedAt = time.Now()

	if _, err := s.UpsertEntities([]entity.Entity{stale, fresh}); err != nil {
		t.Fatalf("UpsertEntities failed: %v", err)
	}

	n, err := s.Prune(time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned = %d, want 1", n)
	}
	if _, err := s.GetEntity(stale.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("stale entity should be gone, err = %v", err)
	}
	if _, err := s.GetEntity(fresh.ID); err != nil {
		t.Errorf("fresh entity should remain, err = %v", err)
	}
}

// TestCheckpointRestore はチェックポイント取得と巻き戻しをテストする。
func TestCheckpointRestore(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "sentinel.db"), nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	if _, err := s.UpsertEntities([]entity.Entity{hostEntity("10.0.0.1")}); err != nil {
		t.Fatalf("UpsertEntities failed: %v", err)
	}

	cp := filepath.Join(dir, "checkpoint.db")
	if err := s.Checkpoint(cp); err != nil {
		t.Fatalf("Checkpoint failed: %v", err)
	}

	// チェックポイント後の書き込みは Restore で消えること
	if _, err := s.UpsertEntities([]entity.Entity{hostEntity("10.0.0.2")}); err != nil {
		t.Fatalf("UpsertEntities failed: %v", err)
	}
	if err := s.Restore(cp); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	if _, err := s.GetEntity("host_10_0_0_1"); err != nil {
		t.Errorf("checkpointed entity missing after restore: %v", err)
	}
	if _, err := s.GetEntity("host_10_0_0_2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("post-checkpoint entity should be gone, err = %v", err)
	}
}

// TestRecordExecution は履歴の追記と照会をテストする。
func TestRecordExecution(t *testing.T) {
	s := openTestStore(t)

	id := NewExecutionID()
	if !strings.HasPrefix(id, "exec_") || len(id) != len("exec_")+8 {
		t.Errorf("execution id format = %q", id)
	}

	now := time.Now()
	exec := Execution{
		ID:          id,
		Tool:        "nmap",
		Intent:      schema.IntentPortScan,
		Target:      "10.0.0.1",
		Command:     "nmap -sS -sV 10.0.0.1",
		StageID:     "stage_01",
		Status:      schema.ExecSuccess,
		ParseStatus: schema.ParseParsed,
		EntityCount: 5,
		RawOutput:   "Nmap scan report for 10.0.0.1\n22/tcp open ssh\n",
		StartedAt:   now.Add(-10 * time.Second),
		CompletedAt: now,
	}
	if err := s.RecordExecution(exec); err != nil {
		t.Fatalf("RecordExecution failed: %v", err)
	}

	last, err := s.LastExecution("nmap")
	if err != nil {
		t.Fatalf("LastExecution failed: %v", err)
	}
	if last == nil || last.ID != id || last.EntityCount != 5 {
		t.Errorf("last = %+v", last)
	}
	if last.Status != schema.ExecSuccess || last.ParseStatus != schema.ParseParsed {
		t.Errorf("status = %v/%v", last.Status, last.ParseStatus)
	}
	if last.RawOutput != exec.RawOutput {
		t.Errorf("raw output not persisted: %q", last.RawOutput)
	}
	if last.StageID != "stage_01" {
		t.Errorf("stage id = %q", last.StageID)
	}

	ok, err := s.HasSuccessfulRun("nmap")
	if err != nil || !ok {
		t.Errorf("HasSuccessfulRun = %v, %v", ok, err)
	}
	ok, err = s.HasSuccessfulRun("gobuster")
	if err != nil || ok {
		t.Errorf("HasSuccessfulRun(gobuster) = %v, %v", ok, err)
	}

	all, err := s.Executions("")
	if err != nil || len(all) != 1 {
		t.Errorf("Executions = %d rows, err %v", len(all), err)
	}
}

// TestCheckpointDuringWrites はチェックポイントと並行書き込みが
// 衝突しない（閉じた接続への書き込みが起きない）ことをテストする。
func TestCheckpointDuringWrites(t *testing.T) {
	s := openTestStore(t)
	dir := t.TempDir()

	var wg sync.WaitGroup
	errCh := make(chan error, 64)

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			addr := fmt.Sprintf("10.0.0.%d", i+1)
			if _, err := s.UpsertEntities([]entity.Entity{hostEntity(addr)}); err != nil {
				errCh <- err
				return
			}
			if err := s.RecordExecution(Execution{
				ID:          NewExecutionID(),
				Tool:        "nmap",
				Status:      schema.ExecSuccess,
				ParseStatus: schema.ParseParsed,
				StartedAt:   time.Now(),
				CompletedAt: time.Now(),
			}); err != nil {
				errCh <- err
				return
			}
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 5; i++ {
			cp := filepath.Join(dir, fmt.Sprintf("cp-%d.db", i))
			if err := s.Checkpoint(cp); err != nil {
				errCh <- err
				return
			}
		}
	}()

	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Errorf("concurrent write/checkpoint failed: %v", err)
	}
}
