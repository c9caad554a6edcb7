package benchmarks

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/randalmurphal/procura/pkg/pipeline"
	"github.com/randalmurphal/procura/pkg/pipeline/checkpoint"
)

// TurnState approximates a realistic conversational state payload.
type TurnState struct {
	SessionID string
	Messages  []string
	Entities  map[string]string
	Suppliers []struct {
		ID     string
		Name   string
		Rating float64
	}
}

func createTurnState() TurnState {
	state := TurnState{
		SessionID: "sess-bench",
		Entities: map[string]string{
			"category":      "electronics",
			"region":        "north america",
			"certification": "ISO 9001",
		},
	}
	for i := 0; i < 20; i++ {
		state.Messages = append(state.Messages, fmt.Sprintf("message %d with some typical length", i))
	}
	for i := 0; i < 10; i++ {
		state.Suppliers = append(state.Suppliers, struct {
			ID     string
			Name   string
			Rating float64
		}{ID: fmt.Sprintf("sup-%d", i), Name: "Supplier", Rating: 4.2})
	}
	return state
}

// BenchmarkMemoryStore_Save measures in-memory checkpoint save.
func BenchmarkMemoryStore_Save(b *testing.B) {
	store := checkpoint.NewMemoryStore()
	data, _ := json.Marshal(createTurnState())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = store.Save("run-1", "stage-1", data)
	}
}

// BenchmarkMemoryStore_Load measures in-memory checkpoint load.
func BenchmarkMemoryStore_Load(b *testing.B) {
	store := checkpoint.NewMemoryStore()
	data, _ := json.Marshal(createTurnState())
	_ = store.Save("run-1", "stage-1", data)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = store.Load("run-1", "stage-1")
	}
}

// BenchmarkSQLiteStore_Save measures SQLite checkpoint save.
func BenchmarkSQLiteStore_Save(b *testing.B) {
	store, err := checkpoint.NewSQLiteStore(filepath.Join(b.TempDir(), "bench.db"))
	if err != nil {
		b.Fatal(err)
	}
	defer store.Close()

	data, _ := json.Marshal(createTurnState())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = store.Save("run-1", stageID(i%100), data)
	}
}

// BenchmarkSQLiteStore_Load measures SQLite checkpoint load.
func BenchmarkSQLiteStore_Load(b *testing.B) {
	store, err := checkpoint.NewSQLiteStore(filepath.Join(b.TempDir(), "bench.db"))
	if err != nil {
		b.Fatal(err)
	}
	defer store.Close()

	data, _ := json.Marshal(createTurnState())
	_ = store.Save("run-1", "stage-1", data)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = store.Load("run-1", "stage-1")
	}
}

// BenchmarkRun_WithCheckpointing measures execution with checkpointing enabled.
func BenchmarkRun_WithCheckpointing(b *testing.B) {
	store := checkpoint.NewMemoryStore()
	compiled := mustCompile(buildLinearPipeline(5))
	ctx := pipeline.NewContext(context.Background())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = compiled.Run(ctx, State{},
			pipeline.WithCheckpointing(store),
			pipeline.WithRunID(fmt.Sprintf("run-%d", i)),
		)
	}
}

// BenchmarkRun_WithoutCheckpointing baseline without checkpointing.
func BenchmarkRun_WithoutCheckpointing(b *testing.B) {
	compiled := mustCompile(buildLinearPipeline(5))
	ctx := pipeline.NewContext(context.Background())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = compiled.Run(ctx, State{})
	}
}

// BenchmarkJSONMarshal measures state serialization overhead.
func BenchmarkJSONMarshal(b *testing.B) {
	state := createTurnState()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = json.Marshal(state)
	}
}

// BenchmarkJSONUnmarshal measures state deserialization overhead.
func BenchmarkJSONUnmarshal(b *testing.B) {
	data, _ := json.Marshal(createTurnState())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var s TurnState
		_ = json.Unmarshal(data, &s)
	}
}
