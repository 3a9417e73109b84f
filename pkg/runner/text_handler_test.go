package runner

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/domain"
)

func TestTextHandler_Output(t *testing.T) {
	out := &bytes.Buffer{}
	handler := NewTextHandler(strings.NewReader(""), out, WithTextHandlerRenderer(func(s string) (string, error) {
		return "Rendered: " + s, nil
	}))

	err := handler.Output(context.Background(), []domain.Action{
		domain.NewSendWhatsApp("+1", "Hello World"),
		domain.NewSendWhatsAppTemplate("+1", "promo", "es", map[string]string{"2": "b", "1": "a"}),
		domain.NewSendEmail("ops@example.com", "Lead", "body"),
		domain.NewAssignConversation("agent-7", "user", "s1"),
		domain.NewAssignToAdmin("boss"),
	})
	require.NoError(t, err)

	assert.Equal(t, strings.Join([]string{
		"Rendered: Hello World",
		`[template "promo" (es) 1=a 2=b]`,
		"[email to ops@example.com: Lead]",
		"[conversation assigned to user agent-7]",
		"[assigned to admin boss]",
	}, "\n")+"\n", out.String())
}

func TestTextHandler_Input(t *testing.T) {
	out := &bytes.Buffer{}
	handler := NewTextHandler(strings.NewReader("  my answer \nbad\x1b\n"), out)

	val, err := handler.Input(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "my answer", val)

	val, err = handler.Input(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "bad", val, "control characters are stripped")

	_, err = handler.Input(context.Background())
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "> > > ", out.String())
}

func TestTextHandler_InputRetriesRejectedLines(t *testing.T) {
	out := &bytes.Buffer{}
	handler := NewTextHandler(strings.NewReader("toolong\nañño\n"), out, WithTextHandlerSanitizer(NewSanitizer(4)))

	val, err := handler.Input(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "añño", val, "four characters fit even at six bytes")
	assert.Contains(t, out.String(), "Please try again.")
}

func TestTextHandler_InputCancelled(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	handler := NewTextHandler(r, &bytes.Buffer{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := handler.Input(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTextHandler_SystemOutput(t *testing.T) {
	out := &bytes.Buffer{}
	handler := NewTextHandler(strings.NewReader(""), out)
	require.NoError(t, handler.SystemOutput(context.Background(), "hi"))
	assert.Equal(t, "\n[System] hi\n", out.String())
}
