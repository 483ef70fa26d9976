package connectors

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/sandboxws/stagesync/pkg/operator"
	"github.com/sandboxws/stagesync/pkg/protocol"
)

func collect(t *testing.T, src operator.Source, opCtx *operator.Context) []protocol.Message {
	t.Helper()
	if err := src.Open(opCtx); err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	out := make(chan protocol.Message, 100)
	done := make(chan error, 1)
	go func() {
		done <- src.Run(opCtx, out)
	}()

	var msgs []protocol.Message
	for msg := range out {
		msgs = append(msgs, msg)
	}
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	return msgs
}

func TestGeneratorMaxRecords(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	gen := NewGenerator([]string{"orders", "users"}, "public", 100000, 5)
	gen.SetStateEvery(2)
	msgs := collect(t, gen, operator.NewContext(ctx, "generator"))

	var records, states int
	perStream := map[string]int{}
	for _, msg := range msgs {
		switch msg.Type {
		case protocol.TypeRecord:
			records++
			perStream[msg.Record.Stream]++
			if msg.Record.Namespace != "public" {
				t.Errorf("expected namespace public, got %q", msg.Record.Namespace)
			}
		case protocol.TypeState:
			states++
		}
	}
	if records != 5 {
		t.Errorf("expected 5 records, got %d", records)
	}
	if states != 3 {
		t.Errorf("expected 3 states, got %d", states)
	}
	if perStream["orders"] != 3 || perStream["users"] != 2 {
		t.Errorf("expected round-robin streams, got %v", perStream)
	}
	if msgs[len(msgs)-1].Type != protocol.TypeState {
		t.Errorf("expected final message to be STATE, got %s", msgs[len(msgs)-1].Type)
	}
}

func TestGeneratorRequiresStreams(t *testing.T) {
	gen := NewGenerator(nil, "", 10, 1)
	if err := gen.Open(operator.NewContext(context.Background(), "generator")); err == nil {
		t.Fatal("expected error without streams")
	}
}

func TestLineSource(t *testing.T) {
	input := strings.Join([]string{
		`{"type":"RECORD","record":{"stream":"orders","data":{"id":1},"emitted_at":1700000000000}}`,
		``,
		`not json`,
		`{"type":"LOG","log":{"level":"INFO","message":"hello"}}`,
		`{"type":"STATE","state":{"data":{"cursor":1}}}`,
	}, "\n")

	opCtx := operator.NewContext(context.Background(), "stdin")
	msgs := collect(t, NewLineSource(strings.NewReader(input)), opCtx)

	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	want := []protocol.Type{protocol.TypeRecord, protocol.TypeLog, protocol.TypeState}
	for i, msg := range msgs {
		if msg.Type != want[i] {
			t.Errorf("message %d: expected %s, got %s", i, want[i], msg.Type)
		}
	}
	if got := opCtx.Metrics.Errors.Load(); got != 1 {
		t.Errorf("expected 1 skipped line, got %d", got)
	}
	if string(msgs[2].Raw) != `{"type":"STATE","state":{"data":{"cursor":1}}}` {
		t.Errorf("expected raw state to be kept, got %s", msgs[2].Raw)
	}
}

func TestLineSourceStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	opCtx := operator.NewContext(ctx, "stdin")

	input := strings.Repeat(`{"type":"STATE","state":{"data":{}}}`+"\n", 10)
	src := NewLineSource(strings.NewReader(input))
	out := make(chan protocol.Message)
	done := make(chan error, 1)
	go func() {
		done <- src.Run(opCtx, out)
	}()

	<-out
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("source did not stop after cancel")
	}
}

func TestLineSourceStopsWhileInputIsIdle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	opCtx := operator.NewContext(ctx, "stdin")

	pr, pw := io.Pipe()
	defer pw.Close()
	src := NewLineSource(pr)
	out := make(chan protocol.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- src.Run(opCtx, out)
	}()

	if _, err := io.WriteString(pw, `{"type":"STATE","state":{"data":{}}}`+"\n"); err != nil {
		t.Fatal(err)
	}
	<-out
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("source blocked on idle input after cancel")
	}
	if _, ok := <-out; ok {
		t.Fatal("expected output channel to be closed")
	}
}

func TestConsoleEchoesRawState(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole()
	c.SetWriter(&buf)
	if err := c.Open(nil); err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	raw := `{"type":"STATE","state":{"data":{"b":2,"a":1}}}`
	msg, err := protocol.Decode([]byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	if err := c.WriteMessage(msg); err != nil {
		t.Fatal(err)
	}
	if err := c.WriteMessage(protocol.NewStateMessage([]byte(`{"n":1}`))); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	if lines[0] != raw {
		t.Errorf("expected state echoed verbatim, got %s", lines[0])
	}
	if !strings.Contains(lines[1], `"type":"STATE"`) {
		t.Errorf("expected encoded state, got %s", lines[1])
	}
	if c.Count() != 2 {
		t.Errorf("expected count 2, got %d", c.Count())
	}
}

func TestKafkaSourceStartOffset(t *testing.T) {
	tests := []struct {
		mode  string
		group string
		want  int
	}{
		{mode: "earliest", want: 3},
		{mode: "latest", want: 3},
		{mode: "", group: "stagesync", want: 5},
	}
	for _, tt := range tests {
		src := NewKafkaSource("input", []string{"localhost:9092"}, tt.mode, tt.group)
		if got := len(src.options()); got != tt.want {
			t.Errorf("mode %q group %q: expected %d options, got %d", tt.mode, tt.group, tt.want, got)
		}
	}
}

func TestKafkaSourceGroupDisablesAutoCommit(t *testing.T) {
	src := NewKafkaSource("input", []string{"localhost:9092"}, "", "stagesync")
	client, err := kgo.NewClient(src.options()...)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	if got, _ := client.OptValue(kgo.ConsumerGroup).(string); got != "stagesync" {
		t.Fatalf("expected consumer group stagesync, got %q", got)
	}
	if disabled, _ := client.OptValue(kgo.DisableAutoCommit).(bool); !disabled {
		t.Fatal("expected auto-commit to be disabled so offsets follow acknowledged states")
	}
}

func TestKafkaSourceCommitsStatesInOrder(t *testing.T) {
	src := NewKafkaSource("input", []string{"localhost:9092"}, "", "")
	first := &kgo.Record{Topic: "input", Partition: 0, Offset: 4}
	second := &kgo.Record{Topic: "input", Partition: 0, Offset: 9}
	src.track(first)
	src.track(second)

	// Without a group there is nothing to commit, but the position still advances.
	if err := src.Commit(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := src.nextCommit(); got != second {
		t.Fatalf("expected the second state to be next, got %+v", got)
	}
	if got := src.nextCommit(); got != nil {
		t.Fatalf("expected no pending states, got %+v", got)
	}
	if err := src.Commit(context.Background()); err != nil {
		t.Fatalf("expected commit with nothing pending to succeed, got %v", err)
	}
}

func TestKafkaSourceRunRequiresOpen(t *testing.T) {
	src := NewKafkaSource("input", []string{"localhost:9092"}, "", "")
	out := make(chan protocol.Message, 1)
	if err := src.Run(operator.NewContext(context.Background(), "kafka"), out); err == nil {
		t.Fatal("expected error when running an unopened source")
	}
	if _, ok := <-out; ok {
		t.Fatal("expected output channel to be closed")
	}
}

func TestKafkaSinkOpen(t *testing.T) {
	// Client creation does not dial, so no broker is needed.
	sink := NewKafkaSink("state", []string{"localhost:9092"})
	if err := sink.Open(nil); err != nil {
		t.Fatal(err)
	}
	if sink.client == nil {
		t.Fatal("expected client to be created")
	}
	if err := sink.Close(); err != nil {
		t.Fatal(err)
	}
}
