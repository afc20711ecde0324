package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/BaSui01/colloquy/types"
)

func twoParticipants(alice, bob *scriptedAdapter) []*Participant {
	return []*Participant{
		NewParticipant("Alice", alice, "model-a", "You are Alice."),
		NewParticipant("Bob", bob, "model-b", "You are Bob."),
	}
}

func TestRunnerRequiresTwoParticipants(t *testing.T) {
	t.Parallel()

	_, err := NewRunner([]*Participant{
		NewParticipant("Solo", newScriptedAdapter("scripted"), "model-a"),
	}, RunnerConfig{})
	if !types.IsErrorCode(err, types.ErrConfiguration) {
		t.Fatalf("error code = %v, want %v", types.GetErrorCode(err), types.ErrConfiguration)
	}
}

func TestRunnerToolsRequireExecutor(t *testing.T) {
	t.Parallel()

	_, err := NewRunner(
		twoParticipants(newScriptedAdapter("a"), newScriptedAdapter("b")),
		RunnerConfig{Tools: []types.ToolSchema{weatherSchema()}},
	)
	if !types.IsErrorCode(err, types.ErrConfiguration) {
		t.Fatalf("error code = %v, want %v", types.GetErrorCode(err), types.ErrConfiguration)
	}
}

func TestRunnerRejectsDuplicateNames(t *testing.T) {
	t.Parallel()

	_, err := NewRunner([]*Participant{
		NewParticipant("Twin", newScriptedAdapter("a"), "model-a"),
		NewParticipant("Twin", newScriptedAdapter("b"), "model-b"),
	}, RunnerConfig{})
	if !types.IsErrorCode(err, types.ErrConfiguration) {
		t.Fatalf("error code = %v, want %v", types.GetErrorCode(err), types.ErrConfiguration)
	}
}

func TestRunnerInvalidStartingParticipant(t *testing.T) {
	t.Parallel()

	alice := newScriptedAdapter("a", textResponse("hi"))
	bob := newScriptedAdapter("b", textResponse("hi"))
	runner, err := NewRunner(twoParticipants(alice, bob), RunnerConfig{})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	transcript, err := runner.Run(context.Background(), RunOptions{
		StartingMessage:     "go",
		StartingParticipant: "Mallory",
		MaxTurns:            2,
	})
	if !types.IsErrorCode(err, types.ErrConfiguration) {
		t.Fatalf("error code = %v, want %v", types.GetErrorCode(err), types.ErrConfiguration)
	}
	// 致命错误在任何回合执行之前报告
	if transcript.Len() != 0 {
		t.Fatalf("transcript.Len() = %d, want 0", transcript.Len())
	}
	if alice.callCount() != 0 || bob.callCount() != 0 {
		t.Fatal("no adapter call may happen before the starting participant check")
	}
}

func TestRunnerAliceBobScenario(t *testing.T) {
	t.Parallel()

	alice := newScriptedAdapter("a", textResponse("Hi Bob!"))
	bob := newScriptedAdapter("b", textResponse("Hi Alice!"))
	runner, err := NewRunner(twoParticipants(alice, bob), RunnerConfig{})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	transcript, err := runner.Run(context.Background(), RunOptions{
		StartingMessage: "Say hello to each other.",
		MaxTurns:        2,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	turns := transcript.Turns()
	if len(turns) != 2 {
		t.Fatalf("len(turns) = %d, want 2", len(turns))
	}
	if turns[0].Role != "Alice" || turns[0].Message != "Hi Bob!" {
		t.Fatalf("turns[0] = %+v", turns[0])
	}
	if turns[1].Role != "Bob" || turns[1].Message != "Hi Alice!" {
		t.Fatalf("turns[1] = %+v", turns[1])
	}

	// Bob 收到的"当前消息"是 Alice 刚产生的文本
	bobReq := bob.request(0)
	last := bobReq.Messages[len(bobReq.Messages)-1]
	if last.Role != types.RoleUser || last.Content != "Hi Bob!" {
		t.Fatalf("bob's user message = %+v", last)
	}
}

func TestRunnerRoundRobinOrder(t *testing.T) {
	t.Parallel()

	names := []string{"P0", "P1", "P2"}
	participants := make([]*Participant, len(names))
	for i, name := range names {
		participants[i] = NewParticipant(name, newScriptedAdapter("a", textResponse("reply from "+name)), "model")
	}
	runner, err := NewRunner(participants, RunnerConfig{})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	transcript, err := runner.Run(context.Background(), RunOptions{StartingMessage: "go", MaxTurns: 7})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	for i, turn := range transcript.Turns() {
		if want := names[i%len(names)]; turn.Role != want {
			t.Fatalf("turns[%d].Role = %s, want %s", i, turn.Role, want)
		}
	}
}

func TestRunnerStartingParticipantByName(t *testing.T) {
	t.Parallel()

	alice := newScriptedAdapter("a", textResponse("from alice"))
	bob := newScriptedAdapter("b", textResponse("from bob"))
	runner, _ := NewRunner(twoParticipants(alice, bob), RunnerConfig{})

	transcript, err := runner.Run(context.Background(), RunOptions{
		StartingMessage:     "go",
		StartingParticipant: "Bob",
		MaxTurns:            3,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	turns := transcript.Turns()
	wantRoles := []string{"Bob", "Alice", "Bob"}
	for i, want := range wantRoles {
		if turns[i].Role != want {
			t.Fatalf("turns[%d].Role = %s, want %s", i, turns[i].Role, want)
		}
	}
}

func TestRunnerHistoryAlternation(t *testing.T) {
	t.Parallel()

	alice := newScriptedAdapter("a", textResponse("a1"), textResponse("a2"))
	bob := newScriptedAdapter("b", textResponse("b1"), textResponse("b2"))
	runner, _ := NewRunner(twoParticipants(alice, bob), RunnerConfig{})

	if _, err := runner.Run(context.Background(), RunOptions{StartingMessage: "go", MaxTurns: 4}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// 第 4 回合（Bob 的第二次）此前已有 3 个回合：user, assistant, user
	req := bob.request(1)
	var history []types.Message
	for _, m := range req.Messages {
		if m.Role != types.RoleSystem {
			history = append(history, m)
		}
	}
	wantRoles := []types.Role{types.RoleUser, types.RoleAssistant, types.RoleUser, types.RoleUser}
	if len(history) != len(wantRoles) {
		t.Fatalf("len(history) = %d, want %d", len(history), len(wantRoles))
	}
	for i, want := range wantRoles {
		if history[i].Role != want {
			t.Fatalf("history[%d].Role = %s, want %s", i, history[i].Role, want)
		}
	}
	if history[0].Content != "a1" || history[1].Content != "b1" || history[2].Content != "a2" {
		t.Fatalf("unexpected history content: %+v", history)
	}
}

func TestRunnerStopConditionEndsRun(t *testing.T) {
	t.Parallel()

	alice := newScriptedAdapter("a", textResponse("a1"), textResponse("a2"), textResponse("a3"))
	bob := newScriptedAdapter("b", textResponse("b1"), textResponse("b2"), textResponse("DONE"))
	runner, _ := NewRunner(twoParticipants(alice, bob), RunnerConfig{})

	transcript, err := runner.Run(context.Background(), RunOptions{
		StartingMessage: "go",
		StopCondition:   AnyMessageContains("DONE"),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// B 的第三条回复是 DONE：两个参与者各 3 条，恰好 6 个回合
	if transcript.Len() != 6 {
		t.Fatalf("transcript.Len() = %d, want 6", transcript.Len())
	}
	last, _ := transcript.LastTurn()
	if last.Role != "Bob" || last.Message != "DONE" {
		t.Fatalf("last turn = %+v", last)
	}
}

func TestRunnerStopPredicateAndCapSameBoundary(t *testing.T) {
	t.Parallel()

	alice := newScriptedAdapter("a", textResponse("a"))
	bob := newScriptedAdapter("b", textResponse("b"))
	runner, _ := NewRunner(twoParticipants(alice, bob), RunnerConfig{})

	stopAtTwo := func(tr *Transcript) bool { return tr.Len() >= 2 }
	transcript, err := runner.Run(context.Background(), RunOptions{
		StartingMessage: "go",
		MaxTurns:        2,
		StopCondition:   stopAtTwo,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// 两个终止条件落在同一迭代边界：都不会产生第三个回合
	if transcript.Len() != 2 {
		t.Fatalf("transcript.Len() = %d, want 2", transcript.Len())
	}
	if alice.callCount()+bob.callCount() != 2 {
		t.Fatalf("adapter calls = %d, want 2", alice.callCount()+bob.callCount())
	}
}

func TestRunnerRecordsToolInvocations(t *testing.T) {
	t.Parallel()

	alice := newScriptedAdapter("a",
		toolCallResponse("checking", weatherCall("call_1")),
		textResponse("18°C and partly cloudy"),
	)
	bob := newScriptedAdapter("b", textResponse("nice"))
	exec := &countingExecutor{}
	runner, err := NewRunner(twoParticipants(alice, bob), RunnerConfig{
		Tools:    []types.ToolSchema{weatherSchema()},
		Executor: exec,
	})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	transcript, err := runner.Run(context.Background(), RunOptions{StartingMessage: "weather?", MaxTurns: 2})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	turns := transcript.Turns()
	if turns[0].Message != "18°C and partly cloudy" {
		t.Fatalf("turns[0].Message = %q", turns[0].Message)
	}
	if len(turns[0].ToolInvocations) != 1 {
		t.Fatalf("tool invocations = %d, want 1", len(turns[0].ToolInvocations))
	}
	inv := turns[0].ToolInvocations[0]
	if inv.ToolName != "get_weather" {
		t.Fatalf("ToolName = %s", inv.ToolName)
	}
	if inv.Arguments["location"] != "Paris" {
		t.Fatalf("Arguments = %+v", inv.Arguments)
	}
	// 结果不落盘：工具输出只存在于回合内部的消息交换里
	if inv.Result != nil || inv.Error != "" {
		t.Fatalf("record should carry no result: %+v", inv)
	}
}

func TestRunnerContinuesInitialTranscript(t *testing.T) {
	t.Parallel()

	seed := NewTranscript()
	seed.AddTurn(Turn{Role: "Alice", Message: "earlier message"})

	alice := newScriptedAdapter("a", textResponse("again"))
	bob := newScriptedAdapter("b", textResponse("reply"))
	runner, _ := NewRunner(twoParticipants(alice, bob), RunnerConfig{})

	transcript, err := runner.Run(context.Background(), RunOptions{
		StartingMessage:   "continue",
		InitialTranscript: seed,
		MaxTurns:          1,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if transcript != seed {
		t.Fatal("runner must extend the supplied transcript, not replace it")
	}
	if transcript.Len() != 2 {
		t.Fatalf("transcript.Len() = %d, want 2", transcript.Len())
	}

	// 先前的回合按位置重放进历史
	req := alice.request(0)
	var nonSystem []types.Message
	for _, m := range req.Messages {
		if m.Role != types.RoleSystem {
			nonSystem = append(nonSystem, m)
		}
	}
	if len(nonSystem) != 2 {
		t.Fatalf("len(nonSystem) = %d, want 2", len(nonSystem))
	}
	if nonSystem[0].Role != types.RoleUser || nonSystem[0].Content != "earlier message" {
		t.Fatalf("history[0] = %+v", nonSystem[0])
	}
}

func TestRunnerErrorKeepsCompletedTurns(t *testing.T) {
	t.Parallel()

	sentinel := types.NewError(types.ErrUpstreamError, "provider down")
	alice := newScriptedAdapter("a", textResponse("fine"))
	bob := newScriptedAdapter("b")
	bob.err = sentinel
	runner, _ := NewRunner(twoParticipants(alice, bob), RunnerConfig{})

	transcript, err := runner.Run(context.Background(), RunOptions{StartingMessage: "go", MaxTurns: 4})
	if !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want sentinel", err)
	}

	// 已完成的回合仍然有效，可作为 InitialTranscript 续跑
	if transcript.Len() != 1 {
		t.Fatalf("transcript.Len() = %d, want 1", transcript.Len())
	}
	turn, _ := transcript.LastTurn()
	if turn.Role != "Alice" || turn.Message != "fine" {
		t.Fatalf("turn = %+v", turn)
	}
}
