package cmd

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"emperror.dev/errors"
	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/suite"
	"go.opentelemetry.io/otel/trace"

	"github.com/pgillich/xqueue-client/internal"
	"github.com/pgillich/xqueue-client/internal/logger"
	"github.com/pgillich/xqueue-client/internal/model"
	"github.com/pgillich/xqueue-client/internal/stub"
	"github.com/pgillich/xqueue-client/internal/xqueue"
)

type CmdTestSuite struct {
	suite.Suite
	log    logr.Logger
	out    *bytes.Buffer
	queue  *stub.Queue
	server *httptest.Server
}

func TestCmdTestSuite(t *testing.T) {
	suite.Run(t, new(CmdTestSuite))
}

func (s *CmdTestSuite) SetupTest() {
	s.log = logger.GetLogger(s.T().Name())
	s.out = &bytes.Buffer{}
	rootCmd.SetOut(s.out)
	for _, c := range []*cobra.Command{submitCmd, headerCmd, stubCmd} {
		resetFlags(c)
	}
	s.queue = stub.New(stub.Config{Username: "lms", Password: "secret", Queues: []string{"python"}})
	s.server = httptest.NewServer(s.queue.Handler(s.log, trace.NewNoopTracerProvider().Tracer("test"), "cmd-test"))
}

func (s *CmdTestSuite) TearDownTest() {
	s.server.Close()
	rootCmd.SetOut(nil)
}

func resetFlags(c *cobra.Command) {
	c.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		}
	})
}

func (s *CmdTestSuite) endpoint() string {
	return s.server.URL + stub.DefaultPrefix
}

func (s *CmdTestSuite) TestKey() {
	s.Require().NoError(Execute(context.Background(), []string{"key", "seed"}, nil))

	key := strings.TrimSpace(s.out.String())
	s.Len(key, xqueue.KeyLen)
	_, err := hex.DecodeString(key)
	s.NoError(err)
}

func (s *CmdTestSuite) TestHeader() {
	s.Require().NoError(Execute(context.Background(), []string{
		"header", "--callbackURL", "http://lms/cb", "--key", "k1", "--queue", "python",
	}, nil))

	fields := map[string]string{}
	s.Require().NoError(json.Unmarshal(s.out.Bytes(), &fields))
	s.Equal(map[string]string{"lms_callback_url": "http://lms/cb", "lms_key": "k1", "queue_name": "python"}, fields)
}

func (s *CmdTestSuite) TestSubmit() {
	attachment := filepath.Join(s.T().TempDir(), "answer.py")
	s.Require().NoError(os.WriteFile(attachment, []byte("print(42)"), 0o600))

	err := Execute(context.Background(), []string{
		"submit", "--endpoint", s.endpoint(), "--username", "lms", "--password", "secret",
		"--queue", "python", "--callbackURL", "http://lms/cb", "--keySeed", "student-7",
		"--file", attachment, `{"answer":42}`,
	}, nil)

	s.Require().NoError(err)
	submissions := s.queue.Submissions()
	s.Require().Len(submissions, 1)
	s.Equal(strings.TrimSpace(s.out.String()), submissions[0].Header.LMSKey)
	s.Equal("http://lms/cb", submissions[0].Header.LMSCallbackURL)
	s.Equal("python", submissions[0].Header.QueueName)
	s.Equal(`{"answer":42}`, submissions[0].Body)
	s.Equal(map[string][]byte{"answer.py": []byte("print(42)")}, submissions[0].Files)
}

func (s *CmdTestSuite) TestSubmitBodyFileAndEnv() {
	bodyFile := filepath.Join(s.T().TempDir(), "body.json")
	s.Require().NoError(os.WriteFile(bodyFile, []byte(`{"from":"file"}`), 0o600))
	s.T().Setenv("XQUEUE_PASSWORD", "secret")

	err := Execute(context.Background(), []string{
		"submit", "--endpoint", s.endpoint(), "--queue", "python", "--key", "fixed-key", "--bodyFile", bodyFile,
	}, nil)

	s.Require().NoError(err)
	s.Equal("fixed-key", strings.TrimSpace(s.out.String()))
	submissions := s.queue.Submissions()
	s.Require().Len(submissions, 1)
	s.Equal(`{"from":"file"}`, submissions[0].Body)
	s.Equal("fixed-key", submissions[0].Header.LMSKey)
}

func (s *CmdTestSuite) TestSubmitRejected() {
	err := Execute(context.Background(), []string{
		"submit", "--endpoint", s.endpoint(), "--password", "wrong", "--queue", "python", "body",
	}, nil)

	s.Require().Error(err)
	s.True(errors.Is(err, xqueue.ErrRejected), err.Error())
	s.Empty(s.out.String())
	s.Empty(s.queue.Submissions())
}

func (s *CmdTestSuite) TestSubmitUnreachable() {
	server := httptest.NewServer(http.NotFoundHandler())
	endpoint := server.URL + "/xqueue"
	server.Close()

	err := Execute(context.Background(), []string{
		"submit", "--endpoint", endpoint, "--password", "secret", "--queue", "python", "body",
	}, nil)

	s.True(errors.Is(err, xqueue.ErrConnection), err)
	s.Contains(err.Error(), endpoint)
}

func (s *CmdTestSuite) TestSubmitMissingBody() {
	err := Execute(context.Background(), []string{
		"submit", "--endpoint", s.endpoint(), "--password", "secret", "--queue", "python",
	}, nil)

	s.True(errors.Is(err, internal.ErrMissingBody), err)
	s.Equal(0, s.queue.Logins())
}

func (s *CmdTestSuite) TestStubCommand() {
	testServer := httptest.NewUnstartedServer(nil)
	addr := testServer.Listener.Addr().String()
	started := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- Execute(ctx, []string{
			"stub", "--listenaddr", addr, "--username", "grader", "--password", "pw", "--prefix", "/q",
		}, testServerRunner(testServer, started))
	}()
	<-started

	client, err := xqueue.NewClient(xqueue.Config{Endpoint: testServer.URL + "/q", Username: "grader", Password: "pw"})
	s.Require().NoError(err)
	s.NoError(client.Submit(context.Background(), xqueue.MakeHeader("", "", "any"), "body", nil))

	cancel()
	s.NoError(<-done)
}

func testServerRunner(server *httptest.Server, started chan struct{}) model.ServerRunner {
	return func(h http.Handler, shutdown <-chan struct{}, addr string, log logr.Logger) {
		server.Config.Handler = h
		log.Info("TestServer start")
		server.Start()
		close(started)
		log.Info("TestServer started")
		<-shutdown
		log.Info("TestServer shutdown")
		server.Close()
	}
}
