package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"ACDB/internal/domain"
	"ACDB/internal/platform/api/dto"
	"ACDB/internal/platform/api/zmq"

	"github.com/go-zeromq/zmq4"
	json "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var errTimeout = errors.New("request timeout")

type requestResult struct {
	duration time.Duration
	success  bool
	timedOut bool
}

type benchmarkStats struct {
	total     int64
	succeeded int64
	timedOut  int64
	failed    int64

	mu            sync.Mutex
	responseTimes []time.Duration
	start         time.Time
	end           time.Time
}

func (b *benchmarkStats) add(result requestResult) {
	atomic.AddInt64(&b.total, 1)
	switch {
	case result.timedOut:
		atomic.AddInt64(&b.timedOut, 1)
	case result.success:
		atomic.AddInt64(&b.succeeded, 1)
	default:
		atomic.AddInt64(&b.failed, 1)
	}
	b.mu.Lock()
	b.responseTimes = append(b.responseTimes, result.duration)
	b.mu.Unlock()
}

func (b *benchmarkStats) percentile(p float64) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.responseTimes) == 0 {
		return 0
	}
	sort.Slice(b.responseTimes, func(i, j int) bool { return b.responseTimes[i] < b.responseTimes[j] })
	return b.responseTimes[int(float64(len(b.responseTimes)-1)*p)]
}

type zmqClient struct {
	address   string
	socket    zmq4.Socket
	timeout   time.Duration
	newSocket func() zmq4.Socket
}

func newZmqClient(address string, timeout time.Duration) (*zmqClient, error) {
	c := &zmqClient{
		address:   address,
		timeout:   timeout,
		newSocket: func() zmq4.Socket { return zmq4.NewReq(context.Background()) },
	}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *zmqClient) connect() error {
	socket := c.newSocket()
	if err := socket.Dial(c.address); err != nil {
		socket.Close()
		return errors.Wrapf(err, "connect to %s", c.address)
	}
	c.socket = socket
	return nil
}

// send runs one request/reply exchange. A timed out exchange leaves the REQ
// socket waiting for a reply, so the socket is dropped and the next send
// dials a fresh one.
func (c *zmqClient) send(req zmq.ApiRequest) (zmq.ApiResponse, error) {
	if c.socket == nil {
		if err := c.connect(); err != nil {
			return zmq.ApiResponse{}, err
		}
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return zmq.ApiResponse{}, err
	}
	if err := c.socket.Send(zmq4.NewMsg(payload)); err != nil {
		return zmq.ApiResponse{}, errors.Wrap(err, "send request")
	}

	msgCh := make(chan zmq4.Msg, 1)
	errCh := make(chan error, 1)
	done := make(chan struct{})
	go func(socket zmq4.Socket) {
		defer close(done)
		msg, err := socket.Recv()
		if err != nil {
			errCh <- err
			return
		}
		msgCh <- msg
	}(c.socket)

	select {
	case msg := <-msgCh:
		var resp zmq.ApiResponse
		if err := json.Unmarshal(msg.Bytes(), &resp); err != nil {
			return zmq.ApiResponse{}, errors.Wrap(err, "unmarshal response")
		}
		return resp, nil
	case err := <-errCh:
		return zmq.ApiResponse{}, err
	case <-time.After(c.timeout):
		c.socket.Close()
		<-done
		c.socket = nil
		return zmq.ApiResponse{}, errTimeout
	}
}

func (c *zmqClient) close() error {
	if c.socket == nil {
		return nil
	}
	return c.socket.Close()
}

func calibrationMap(key uint32, payloadSize int) *dto.CalibrationMap {
	payload := make([]byte, payloadSize)
	rand.Read(payload)
	return &dto.CalibrationMap{
		KeyVectorType: domain.CalKeyVector.String(),
		KeyVector:     domain.KeyVector{{Key: key, Value: 1}},
		Subgraphs: []dto.Subgraph{{
			SubgraphID: 0x1000,
			Global:     []dto.ModuleCal{{InstanceID: 0x4000, ParamID: 0x0800, Payload: payload}},
		}},
	}
}

// worker sends a mix of lookups and updates, writeRatio of them updates.
func worker(id int, address string, timeout, duration time.Duration, keys int, writeRatio float64,
	stats *benchmarkStats, wg *sync.WaitGroup, logger logrus.FieldLogger) {
	defer wg.Done()

	client, err := newZmqClient(address, timeout)
	if err != nil {
		logger.WithError(err).WithField("worker", id).Error("create client")
		return
	}
	defer client.close()

	end := time.Now().Add(duration)
	for time.Now().Before(end) {
		key := uint32(rand.Intn(keys))
		req := zmq.ApiRequest{Action: zmq.GetMap}
		if rand.Float64() < writeRatio {
			req = zmq.ApiRequest{Action: zmq.SetMap, Map: calibrationMap(key, 64)}
		} else {
			req.KeyString, _ = domain.KeyVector{{Key: key, Value: 1}}.ToString()
		}

		start := time.Now()
		resp, err := client.send(req)
		stats.add(requestResult{
			duration: time.Since(start),
			success:  err == nil && resp.Error == "",
			timedOut: errors.Is(err, errTimeout),
		})
	}
}

func printResults(stats *benchmarkStats) {
	elapsed := stats.end.Sub(stats.start)
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Duration: %v\n", elapsed)
	fmt.Printf("Requests: %d ok=%d failed=%d timeouts=%d\n",
		stats.total, stats.succeeded, stats.failed, stats.timedOut)
	if elapsed > 0 {
		fmt.Printf("RPS: %.2f\n", float64(stats.total)/elapsed.Seconds())
	}
	for _, p := range []float64{0.5, 0.9, 0.99, 0.999} {
		fmt.Printf("p%v: %v\n", p*100, stats.percentile(p))
	}
	fmt.Println(strings.Repeat("=", 60))
}

func main() {
	var (
		address    = flag.String("address", "tcp://localhost:5555", "ZMQ api address")
		workers    = flag.Int("workers", 4, "Number of worker goroutines")
		duration   = flag.Duration("duration", 30*time.Second, "Test duration")
		timeout    = flag.Duration("timeout", 5*time.Second, "Request timeout")
		keys       = flag.Int("keys", 256, "Number of distinct key vectors")
		writeRatio = flag.Float64("write-ratio", 0.1, "Share of SET_MAP requests")
	)
	flag.Parse()

	logger := logrus.New()
	logger.WithFields(logrus.Fields{
		"address":  *address,
		"workers":  *workers,
		"duration": *duration,
	}).Info("starting calibration benchmark")

	stats := &benchmarkStats{start: time.Now()}
	var wg sync.WaitGroup
	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go worker(i, *address, *timeout, *duration, *keys, *writeRatio, stats, &wg, logger)
	}
	wg.Wait()
	stats.end = time.Now()

	printResults(stats)
}
