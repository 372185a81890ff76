// Package mqtt publishes discovered peers to an MQTT broker and accepts
// remote scan triggers.
package mqtt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/256dpi/gomqtt/client"
	"github.com/256dpi/gomqtt/packet"
	"github.com/op/go-logging"

	"github.com/256dpi/scout/pkg/scan"
)

const timeout = 5 * time.Second

// Announcement is a peer published by a bridge.
type Announcement struct {
	Session string
	Peer    scan.Peer
}

func encode(a Announcement) []byte {
	return []byte(fmt.Sprintf("0|%s|%s|%s|%d", a.Session, a.Peer.Name, a.Peer.Address, a.Peer.RSSI))
}

func decode(payload []byte) (Announcement, error) {
	// pluck of version
	version, rest, ok := strings.Cut(string(payload), "|")
	if !ok || version != "0" {
		return Announcement{}, fmt.Errorf("invalid version")
	}

	// parse rest, the name may contain separators
	fields := strings.Split(rest, "|")
	if len(fields) < 4 {
		return Announcement{}, fmt.Errorf("invalid payload")
	}
	n := len(fields)

	// parse rssi
	rssi, err := strconv.ParseInt(fields[n-1], 10, 16)
	if err != nil {
		return Announcement{}, fmt.Errorf("invalid rssi: %w", err)
	}

	return Announcement{
		Session: fields[0],
		Peer: scan.Peer{
			Name:    strings.Join(fields[1:n-2], "|"),
			Address: fields[n-2],
			RSSI:    int16(rssi),
		},
	}, nil
}

// Config configures a bridge.
type Config struct {
	// URL of the broker, e.g. "mqtt://localhost:1883/scout".
	URL string

	// ClientID used to connect.
	ClientID string

	// Topic prefix, defaults to the path of the URL.
	Topic string

	// QOS used to subscribe and publish.
	QOS packet.QOS

	// Trigger is called for every message on "<topic>/scan". It is called
	// from the client goroutine and must not block.
	Trigger func()

	// Logger defaults to the "mqtt" module logger.
	Logger *logging.Logger
}

// Bridge publishes discovered peers to "<topic>/peers" and triggers scans
// when a message is received on "<topic>/scan".
type Bridge struct {
	client  *client.Client
	qos     packet.QOS
	peers   string
	scan    string
	trigger func()
	queue   chan Announcement
	done    chan struct{}
	log     *logging.Logger
	once    sync.Once
}

// Connect connects to the broker, subscribes the trigger topic and starts
// publishing.
func Connect(cfg Config) (*Bridge, error) {
	// prepare bridge
	b, err := newBridge(cfg)
	if err != nil {
		return nil, err
	}

	// create client
	b.client = client.New()
	b.client.Callback = b.dispatch

	// connect to the broker using the provided url
	cf, err := b.client.Connect(client.NewConfigWithClientID(cfg.URL, cfg.ClientID))
	if err != nil {
		return nil, err
	}
	err = cf.Wait(timeout)
	if err != nil {
		_ = b.client.Close()
		return nil, err
	}

	// subscribe trigger topic
	sf, err := b.client.Subscribe(b.scan, b.qos)
	if err == nil {
		err = sf.Wait(timeout)
	}
	if err != nil {
		_ = b.client.Disconnect()
		return nil, err
	}

	// run publisher
	go b.run()

	return b, nil
}

func newBridge(cfg Config) (*Bridge, error) {
	// check QOS
	if !cfg.QOS.Successful() {
		return nil, errors.New("invalid QOS")
	}

	// set default topic
	topic := cfg.Topic
	if topic == "" {
		topic = urlPath(cfg.URL)
	}

	// set default logger
	log := cfg.Logger
	if log == nil {
		log = logging.MustGetLogger("mqtt")
	}

	return &Bridge{
		qos:     cfg.QOS,
		peers:   join(topic, "peers"),
		scan:    join(topic, "scan"),
		trigger: cfg.Trigger,
		queue:   make(chan Announcement, 64),
		done:    make(chan struct{}),
		log:     log,
	}, nil
}

func (b *Bridge) dispatch(msg *packet.Message, err error) error {
	// log connection errors
	if err != nil {
		b.log.Errorf("connection lost: %s", err)
		return err
	}

	// ignore other topics
	if msg.Topic != b.scan {
		return nil
	}

	// trigger scan
	b.log.Debugf("scan requested")
	if b.trigger != nil {
		b.trigger()
	}

	return nil
}

// Found enqueues a discovered peer for publishing. It does not block and
// drops the peer if the queue is full.
func (b *Bridge) Found(session scan.Session, peer scan.Peer) {
	select {
	case b.queue <- Announcement{Session: session.ID, Peer: peer}:
	case <-b.done:
	default:
		b.log.Warningf("dropping peer %s: queue full", peer.Address)
	}
}

// Close stops publishing, removes the trigger subscription and disconnects
// the client. It may be called multiple times.
func (b *Bridge) Close() error {
	var err error
	b.once.Do(func() {
		// stop publisher
		close(b.done)

		// unsubscribe trigger topic
		uf, e := b.client.Unsubscribe(b.scan)
		if e == nil {
			e = uf.Wait(timeout)
		}
		if e != nil {
			b.log.Warningf("unsubscribe failed: %s", e)
		}

		// disconnect client
		err = b.client.Disconnect()
	})

	return err
}

func (b *Bridge) publish(a Announcement) error {
	// publish message
	pf, err := b.client.Publish(b.peers, encode(a), b.qos, false)
	if err != nil {
		return err
	}

	return pf.Wait(timeout)
}

func (b *Bridge) run() {
	for {
		select {
		case a := <-b.queue:
			err := b.publish(a)
			if err != nil {
				b.log.Errorf("publish failed: %s", err)
			}
		case <-b.done:
			return
		}
	}
}
