package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/CyberwizD/smart-agro-advisor/internal/delivery"
)

func TestTwilioTransport_SendsForm(t *testing.T) {
	var got struct {
		path, from, to, body, user, pass string
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		got.path = r.URL.Path
		got.from = r.PostForm.Get("From")
		got.to = r.PostForm.Get("To")
		got.body = r.PostForm.Get("Body")
		got.user, got.pass, _ = r.BasicAuth()
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM1","status":"queued"}`))
	}))
	defer srv.Close()

	tr := NewTwilioTransport("AC123", "tok", "whatsapp:+14155238886", srv.URL, time.Second, discardLogger())
	require.NoError(t, tr.Send(context.Background(), "whatsapp:+237600000000", "(Part 1/2)\nhello"))

	require.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", got.path)
	require.Equal(t, "whatsapp:+14155238886", got.from)
	require.Equal(t, "whatsapp:+237600000000", got.to)
	require.Equal(t, "(Part 1/2)\nhello", got.body)
	require.Equal(t, "AC123", got.user)
	require.Equal(t, "tok", got.pass)
}

func TestTwilioTransport_ClassifiesErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		kind   delivery.ErrorKind
	}{
		{
			name:   "body too long by code",
			status: http.StatusBadRequest,
			body:   `{"code":21617,"message":"The concatenated message body exceeds the 1600 character limit.","status":400}`,
			kind:   delivery.KindBodyTooLong,
		},
		{
			name:   "body too long by message",
			status: http.StatusBadRequest,
			body:   `{"code":0,"message":"Message body exceeds the 1600 character limit"}`,
			kind:   delivery.KindBodyTooLong,
		},
		{
			name:   "rate limited",
			status: http.StatusTooManyRequests,
			body:   `{"code":20429,"message":"Too Many Requests","status":429}`,
			kind:   delivery.KindRateLimited,
		},
		{
			name:   "invalid recipient",
			status: http.StatusBadRequest,
			body:   `{"code":21211,"message":"Invalid 'To' Phone Number","status":400}`,
			kind:   delivery.KindOther,
		},
		{
			name:   "server error without json",
			status: http.StatusBadGateway,
			body:   `bad gateway`,
			kind:   delivery.KindOther,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			tr := NewTwilioTransport("AC123", "tok", "whatsapp:+1", srv.URL, time.Second, discardLogger())
			err := tr.Send(context.Background(), "whatsapp:+2", "hi")
			require.Error(t, err)
			require.Equal(t, tc.kind, delivery.Classify(err))

			var te *delivery.TransportError
			require.ErrorAs(t, err, &te)
			require.Equal(t, tc.status, te.StatusCode)
		})
	}
}

func TestTwilioTransport_NetworkErrorIsOther(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	tr := NewTwilioTransport("AC123", "tok", "whatsapp:+1", srv.URL, time.Second, discardLogger())
	err := tr.Send(context.Background(), "whatsapp:+2", "hi")
	require.Equal(t, delivery.KindOther, delivery.Classify(err))
}
