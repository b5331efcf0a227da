package mqtt

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/flownet/core/monitoring"
	coremqtt "github.com/kilianp07/flownet/core/mqtt"
	"github.com/kilianp07/flownet/core/problem"
)

// helper to generate self-signed cert
func generateCert(t *testing.T) (certFile, keyFile, caFile string) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := x509.Certificate{SerialNumber: big.NewInt(1), Subject: pkix.Name{CommonName: "test"}, NotBefore: time.Now(), NotAfter: time.Now().Add(time.Hour)}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
	require.NoError(t, err)
	certPEM := pemBlock("CERTIFICATE", der)
	keyPEM := pemBlock("RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(priv))

	dir := t.TempDir()
	certFile = filepath.Join(dir, "cert.pem")
	keyFile = filepath.Join(dir, "key.pem")
	caFile = filepath.Join(dir, "ca.pem")
	require.NoError(t, os.WriteFile(certFile, certPEM, 0o644))
	require.NoError(t, os.WriteFile(keyFile, keyPEM, 0o644))
	require.NoError(t, os.WriteFile(caFile, certPEM, 0o644))
	return
}

func pemBlock(typ string, der []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: typ, Bytes: der})
}

func useMock(t *testing.T, mc *mockClient) {
	t.Helper()
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	t.Cleanup(func() { newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) } })
}

func sampleMessage() coremqtt.Message {
	obj := 350.0
	return coremqtt.Message{
		RunID:   "run-1",
		Problem: "transportation",
		Solution: problem.Solution{
			Status:      problem.StatusOptimal,
			Flows:       map[problem.ArcKey]float64{{From: "W1", To: "S1"}: 40},
			Activations: map[problem.ArcKey]int{},
			Objective:   &obj,
		},
	}
}

func TestLoadTLSConfig(t *testing.T) {
	cert, key, ca := generateCert(t)
	cfg := Config{UseTLS: true, ClientCert: cert, ClientKey: key, CABundle: ca}
	tlsCfg, err := cfg.LoadTLSConfig()
	require.NoError(t, err)
	assert.NotEmpty(t, tlsCfg.Certificates)
	assert.NotNil(t, tlsCfg.RootCAs)

	_, err = Config{UseTLS: true}.LoadTLSConfig()
	assert.ErrorContains(t, err, "requires client_cert")

	_, err = Config{ClientCert: cert, ClientKey: key, CABundle: key}.LoadTLSConfig()
	assert.ErrorContains(t, err, "holds no certificates")
}

func TestNewClientOptionsAuth(t *testing.T) {
	opts, err := NewClientOptions(Config{Broker: "tcp://localhost:1883", ClientID: "id", Username: "u", Password: "p"})
	require.NoError(t, err)
	assert.Equal(t, "u", opts.Username)
	assert.Equal(t, "p", opts.Password)
	assert.Equal(t, "id", opts.ClientID)

	opts, err = NewClientOptions(Config{Broker: "tcp://localhost:1883", Username: "u", AuthMethod: "certificate"})
	require.NoError(t, err)
	assert.Empty(t, opts.Username)
	assert.Contains(t, opts.ClientID, "flownet-")
}

func TestPublish_TopicQoSAndPayload(t *testing.T) {
	mc := &mockClient{}
	useMock(t, mc)
	pub, err := NewPublisher(Config{Broker: "tcp://localhost:1883", Topic: "plant/results/", QoS: 1, Retain: true}, nil)
	require.NoError(t, err)

	require.NoError(t, pub.Publish(context.Background(), sampleMessage()))
	require.Len(t, mc.published, 1)
	got := mc.published[0]
	assert.Equal(t, "plant/results/transportation", got.topic)
	assert.Equal(t, byte(1), got.qos)
	assert.True(t, got.retained)
	assert.Contains(t, string(got.payload), `"W1->S1":40`)
	assert.NotContains(t, string(got.payload), "\n")

	var decoded coremqtt.Message
	require.NoError(t, json.Unmarshal(got.payload, &decoded))
	assert.Equal(t, "run-1", decoded.RunID)
	assert.Equal(t, 40.0, decoded.Solution.Flows[problem.ArcKey{From: "W1", To: "S1"}])
	assert.Equal(t, 350.0, *decoded.Solution.Objective)
}

func TestPublish_DefaultTopic(t *testing.T) {
	mc := &mockClient{}
	useMock(t, mc)
	pub, err := NewPublisher(Config{Broker: "tcp://localhost:1883"}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultTopic+"/unnamed", pub.Topic(coremqtt.Message{}))
}

func TestLWTConfigured(t *testing.T) {
	mc := &mockClient{}
	useMock(t, mc)
	cfg := Config{Broker: "tcp://localhost:1883", ClientID: "id", LWTTopic: "lwt", LWTPayload: "bye", LWTQoS: 1}
	pub, err := NewPublisher(cfg, nil)
	require.NoError(t, err)
	assert.True(t, mc.opts.WillEnabled)
	assert.Equal(t, "lwt", mc.opts.WillTopic)
	assert.Equal(t, "bye", string(mc.opts.WillPayload))
	pub.Close()
	assert.True(t, mc.disconnected)
	assert.Empty(t, mc.published, "unexpected publish on disconnect")
}

func TestConnectFailure(t *testing.T) {
	mc := &mockClient{connectErr: errors.New("refused")}
	useMock(t, mc)
	_, err := NewPublisher(Config{Broker: "tcp://localhost:1883"}, nil)
	assert.ErrorContains(t, err, "refused")
}

func TestRetryLogic(t *testing.T) {
	mc := &mockClient{publishErrs: []error{errors.New("net fail"), nil}}
	useMock(t, mc)
	pub, err := NewPublisher(Config{Broker: "tcp://localhost:1883", MaxRetries: 1, BackoffMS: 1}, nil)
	require.NoError(t, err)
	require.NoError(t, pub.Publish(context.Background(), sampleMessage()))
	assert.Len(t, mc.published, 2)
}

type recordMonitor struct {
	monitoring.NopMonitor
	err  error
	tags map[string]string
}

func (r *recordMonitor) CaptureException(err error, tags map[string]string) {
	r.err = err
	r.tags = tags
}

func TestPublishErrorCaptured(t *testing.T) {
	fail := errors.New("net fail")
	mc := &mockClient{publishErrs: []error{fail, fail, fail}}
	useMock(t, mc)
	mon := &recordMonitor{}
	monitoring.Init(mon)
	t.Cleanup(func() { monitoring.Init(nil) })

	pub, err := NewPublisher(Config{Broker: "tcp://localhost:1883", MaxRetries: 2, BackoffMS: 1}, nil)
	require.NoError(t, err)
	err = pub.Publish(context.Background(), sampleMessage())
	require.ErrorIs(t, err, coremqtt.ErrPublishFailed)
	assert.Len(t, mc.published, 3)
	assert.Equal(t, fail, mon.err)
	assert.Equal(t, "mqtt", mon.tags["module"])
	assert.Equal(t, "run-1", mon.tags["run_id"])
}

func TestPublishCanceledDuringBackoff(t *testing.T) {
	mc := &mockClient{publishErrs: []error{errors.New("net fail")}}
	useMock(t, mc)
	pub, err := NewPublisher(Config{Broker: "tcp://localhost:1883", MaxRetries: 5, BackoffMS: 10_000}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = pub.Publish(ctx, sampleMessage())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, mc.published, 1)
}

type publishCall struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// mockClient implements pahoClient for tests
type mockClient struct {
	opts         *paho.ClientOptions
	published    []publishCall
	publishErrs  []error
	connectErr   error
	disconnected bool
}

func (m *mockClient) IsConnected() bool { return true }
func (m *mockClient) Connect() paho.Token {
	if m.connectErr != nil {
		return &dummyToken{err: m.connectErr}
	}
	if m.opts != nil && m.opts.OnConnect != nil {
		m.opts.OnConnect(nil)
	}
	return &dummyToken{}
}
func (m *mockClient) Disconnect(uint) { m.disconnected = true }
func (m *mockClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	b, _ := payload.([]byte)
	m.published = append(m.published, publishCall{topic: topic, qos: qos, retained: retained, payload: b})
	if len(m.publishErrs) > 0 {
		err := m.publishErrs[0]
		m.publishErrs = m.publishErrs[1:]
		return &dummyToken{err: err}
	}
	return &dummyToken{}
}

type dummyToken struct{ err error }

func (d dummyToken) Wait() bool                     { return true }
func (d dummyToken) WaitTimeout(time.Duration) bool { return true }
func (d dummyToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (d dummyToken) Error() error                   { return d.err }
