package chat_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/raphaelgruber/kbchat/internal/chat"
	"github.com/raphaelgruber/kbchat/internal/conversation"
	"github.com/raphaelgruber/kbchat/internal/models"
	"github.com/raphaelgruber/kbchat/internal/session"
	"github.com/raphaelgruber/kbchat/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCompleter records requests and answers with reply or err.
type fakeCompleter struct {
	reply string
	err   error
	calls atomic.Int32
	last  chat.Request
}

func (f *fakeCompleter) Complete(_ context.Context, req chat.Request) (string, error) {
	f.calls.Add(1)
	f.last = req
	return f.reply, f.err
}

type fixture struct {
	session *session.Store
	conv    *conversation.Store
}

func newFixture(t *testing.T, signedIn bool) fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := fixture{
		session: session.NewStore(),
		conv:    conversation.NewStore(context.Background(), storage.NewMemory(), "", logger),
	}
	if signedIn {
		f.session.Set(models.Identity{ID: "1", Email: "a@b.com", DisplayName: "a"}, "T")
	}
	return f
}

func (f fixture) submitter(c chat.Completer, window int) *chat.Submitter {
	return chat.NewSubmitter(f.session, f.conv, c, window, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSubmitAppendsUserAndAssistant(t *testing.T) {
	f := newFixture(t, true)
	completer := &fakeCompleter{reply: "hi there"}
	s := f.submitter(completer, 0)

	reply, err := s.Submit(context.Background(), "hello")
	require.NoError(t, err)
	require.NotNil(t, reply)

	msgs := f.conv.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, models.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "hi there", msgs[1].Content)
	assert.Equal(t, msgs[1], *reply)
	assert.False(t, f.conv.ReplyPending())
	assert.Empty(t, s.LastError())

	assert.Equal(t, models.Credential("T"), completer.last.Credential)
	assert.Equal(t, "itg", completer.last.Folder)
	require.Len(t, completer.last.History, 1)
	assert.Equal(t, "hello", completer.last.History[0].Content)
}

func TestSubmitIgnoresBlankText(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t"} {
		t.Run(text, func(t *testing.T) {
			f := newFixture(t, true)
			completer := &fakeCompleter{reply: "unused"}
			s := f.submitter(completer, 0)

			reply, err := s.Submit(context.Background(), text)

			assert.NoError(t, err)
			assert.Nil(t, reply)
			assert.Zero(t, f.conv.Len())
			assert.False(t, f.conv.ReplyPending())
			assert.Zero(t, completer.calls.Load())
		})
	}
}

func TestSubmitRequiresSession(t *testing.T) {
	f := newFixture(t, false)
	completer := &fakeCompleter{reply: "unused"}
	s := f.submitter(completer, 0)

	_, err := s.Submit(context.Background(), "hello")

	assert.ErrorIs(t, err, chat.ErrNotAuthenticated)
	assert.Zero(t, f.conv.Len())
	assert.Zero(t, completer.calls.Load())
}

func TestSubmitFailureKeepsUserMessage(t *testing.T) {
	f := newFixture(t, true)
	cause := errors.New("upstream 502")
	s := f.submitter(&fakeCompleter{err: cause}, 0)

	reply, err := s.Submit(context.Background(), "hello")

	require.Error(t, err)
	assert.Nil(t, reply)
	assert.ErrorIs(t, err, chat.ErrCompletion)
	assert.ErrorIs(t, err, cause)
	assert.False(t, f.conv.ReplyPending(), "reply slot released on failure")

	msgs := f.conv.Messages()
	require.Len(t, msgs, 1, "user message is not rolled back")
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Contains(t, s.LastError(), "upstream 502")
	assert.False(t, s.Busy())
}

func TestSubmitRetryClearsLastError(t *testing.T) {
	f := newFixture(t, true)
	completer := &fakeCompleter{err: errors.New("boom")}
	s := f.submitter(completer, 0)

	_, err := s.Submit(context.Background(), "hello")
	require.Error(t, err)

	completer.err = nil
	completer.reply = "recovered"
	_, err = s.Submit(context.Background(), "hello")
	require.NoError(t, err)

	assert.Empty(t, s.LastError())
	assert.Equal(t, 3, f.conv.Len(), "failed user message, retried user message, reply")
}

func TestSubmitRejectsConcurrentSubmission(t *testing.T) {
	f := newFixture(t, true)
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	s := f.submitter(chat.CompleterFunc(func(ctx context.Context, req chat.Request) (string, error) {
		calls.Add(1)
		close(started)
		<-release
		return "first reply", nil
	}), 0)

	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background(), "first")
		done <- err
	}()
	<-started

	assert.True(t, f.conv.ReplyPending())
	assert.True(t, s.Busy())

	_, err := s.Submit(context.Background(), "second")
	assert.ErrorIs(t, err, chat.ErrBusy)
	assert.Equal(t, 1, f.conv.Len(), "rejected submission leaves no trace")

	close(release)
	require.NoError(t, <-done)

	assert.False(t, f.conv.ReplyPending())
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 2, f.conv.Len())
}

// A silent network partition holds the reply slot until the caller gives up;
// no timeout is imposed by the submitter itself.
func TestSubmitHangsUntilContextCancelled(t *testing.T) {
	f := newFixture(t, true)
	started := make(chan struct{})
	s := f.submitter(chat.CompleterFunc(func(ctx context.Context, req chat.Request) (string, error) {
		close(started)
		<-ctx.Done()
		return "", ctx.Err()
	}), 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(ctx, "anyone there?")
		done <- err
	}()
	<-started

	select {
	case <-done:
		t.Fatal("submit returned before cancellation")
	case <-time.After(50 * time.Millisecond):
	}
	assert.True(t, f.conv.ReplyPending())

	cancel()
	err := <-done
	assert.ErrorIs(t, err, chat.ErrCompletion)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, f.conv.ReplyPending())
}

func TestSubmitRecoversFromCompleterPanic(t *testing.T) {
	f := newFixture(t, true)
	s := f.submitter(chat.CompleterFunc(func(ctx context.Context, req chat.Request) (string, error) {
		panic("decoder exploded")
	}), 0)

	reply, err := s.Submit(context.Background(), "hello")

	assert.Nil(t, reply)
	assert.ErrorIs(t, err, chat.ErrCompletion)
	assert.False(t, f.conv.ReplyPending())
	assert.False(t, s.Busy())
	assert.Equal(t, 1, f.conv.Len())
}

func TestSubmitSendsWindowedHistory(t *testing.T) {
	f := newFixture(t, true)
	f.conv.Append(models.RoleUser, "q1")
	f.conv.Append(models.RoleAssistant, "a1")
	f.conv.Append(models.RoleUser, "q2")
	f.conv.SetSelectedFolder(context.Background(), "engineering")

	completer := &fakeCompleter{reply: "a3"}
	s := f.submitter(completer, 2)

	_, err := s.Submit(context.Background(), "  q3  ")
	require.NoError(t, err)

	require.Len(t, completer.last.History, 2)
	assert.Equal(t, "q2", completer.last.History[0].Content)
	assert.Equal(t, "q3", completer.last.History[1].Content, "text is trimmed and included")
	assert.Equal(t, "engineering", completer.last.Folder)
}

func TestSubmitStreamForwardsTokens(t *testing.T) {
	f := newFixture(t, true)
	s := f.submitter(chat.CompleterFunc(func(ctx context.Context, req chat.Request) (string, error) {
		require.NotNil(t, req.OnToken)
		for _, tok := range []string{"hi", " ", "there"} {
			if err := req.OnToken(tok); err != nil {
				return "", err
			}
		}
		return "hi there", nil
	}), 0)

	var got []string
	reply, err := s.SubmitStream(context.Background(), "hello", func(tok string) error {
		got = append(got, tok)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"hi", " ", "there"}, got)
	assert.Equal(t, "hi there", reply.Content)
}
