package stream

import (
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/aurora-is-near/stream-events/transport"
	"github.com/aurora-is-near/stream-events/util"
)

type Opts struct {
	Nats             *transport.NatsConnectionConfig
	Stream           string
	Subject          string `json:",omitempty"`
	RequestWaitMs    uint
	PublishAckWaitMs uint
}

// Interface is the part of a stream used by writers: resume lookups and
// publishing. *Stream implements it.
type Interface interface {
	GetInfo(maxAge time.Duration) (*nats.StreamInfo, time.Time, error)
	Get(seq uint64) (*nats.RawStreamMsg, error)
	Write(data []byte, header nats.Header, msgId string) (*nats.PubAck, error)
}

type infoSnapshot struct {
	info *nats.StreamInfo
	time time.Time
}

type Stream struct {
	opts *Opts

	requestWait    nats.MaxWait
	publishAckWait nats.AckWait
	nc             *transport.NatsConnection
	js             nats.JetStreamContext

	info util.AtomicPtr[infoSnapshot]
}

func (opts Opts) FillMissingFields() *Opts {
	if opts.RequestWaitMs == 0 {
		opts.RequestWaitMs = 5000
	}
	if opts.PublishAckWaitMs == 0 {
		opts.PublishAckWaitMs = 5000
	}
	return &opts
}

func (opts *Opts) logTag() string {
	if opts.Nats == nil {
		return ""
	}
	return opts.Nats.LogTag
}

func ConnectStream(opts *Opts) (*Stream, error) {
	if opts == nil {
		return nil, errors.New("no stream options")
	}
	opts = opts.FillMissingFields()
	s := &Stream{
		opts:           opts,
		requestWait:    nats.MaxWait(time.Millisecond * time.Duration(opts.RequestWaitMs)),
		publishAckWait: nats.AckWait(time.Millisecond * time.Duration(opts.PublishAckWaitMs)),
	}

	s.log("connecting to NATS...")
	var err error
	s.nc, err = transport.ConnectNATS(opts.Nats, nil)
	if err != nil {
		s.log("unable to connect to NATS: %v", err)
		return nil, err
	}

	s.log("connecting to NATS JetStream...")
	s.js, err = s.nc.Conn().JetStream(s.requestWait)
	if err != nil {
		s.log("unable to connect to NATS JetStream: %v", err)
		s.Disconnect()
		return nil, err
	}

	s.log("getting stream info...")
	info, _, err := s.GetInfo(0)
	if err != nil {
		s.log("unable to get stream info: %v", err)
		s.Disconnect()
		return nil, err
	}

	if len(s.opts.Subject) == 0 {
		s.log("subject is not specified, figuring it out automatically...")
		curInfo := info
		for curInfo.Config.Mirror != nil {
			mirrorName := curInfo.Config.Mirror.Name
			s.log("stream '%s' is mirrored from stream '%s', getting it's info...", curInfo.Config.Name, mirrorName)
			curInfo, err = s.js.StreamInfo(mirrorName, s.requestWait)
			if err != nil {
				s.log("unable to get stream '%s' info: %v", mirrorName, err)
				s.Disconnect()
				return nil, err
			}
		}

		if len(curInfo.Config.Subjects) == 0 {
			err := fmt.Errorf("stream '%s' has no subjects", curInfo.Config.Name)
			s.log("%v", err)
			s.Disconnect()
			return nil, err
		}

		s.opts.Subject = curInfo.Config.Subjects[0]
		s.log("subject '%s' is chosen", s.opts.Subject)
	}

	s.log("connected")
	return s, nil
}

func (s *Stream) Opts() *Opts {
	return s.opts
}

func (s *Stream) Disconnect() error {
	if s.nc == nil {
		return nil
	}
	s.log("disconnecting...")
	err := s.nc.Drain()
	s.nc, s.js = nil, nil
	return err
}

// GetInfo returns the stream info, reusing a cached copy younger than maxAge.
// The returned time is when the info was fetched.
func (s *Stream) GetInfo(maxAge time.Duration) (*nats.StreamInfo, time.Time, error) {
	if cached := s.info.Load(); cached != nil && maxAge > 0 && time.Since(cached.time) <= maxAge {
		return cached.info, cached.time, nil
	}
	fetchTime := time.Now()
	info, err := s.js.StreamInfo(s.opts.Stream, s.requestWait)
	if err != nil {
		return nil, time.Time{}, err
	}
	s.info.Store(&infoSnapshot{info: info, time: fetchTime})
	return info, fetchTime, nil
}

func (s *Stream) Get(seq uint64) (*nats.RawStreamMsg, error) {
	return s.js.GetMsg(s.opts.Stream, seq, s.requestWait)
}

func (s *Stream) Write(data []byte, header nats.Header, msgId string) (*nats.PubAck, error) {
	if header == nil {
		header = make(nats.Header)
	}
	if len(msgId) > 0 {
		header.Set(nats.MsgIdHdr, msgId)
	}
	header.Set(nats.ExpectedStreamHdr, s.opts.Stream)
	msg := &nats.Msg{
		Subject: s.opts.Subject,
		Header:  header,
		Data:    data,
	}
	return s.js.PublishMsg(msg, s.publishAckWait)
}

func (s *Stream) log(format string, v ...any) {
	zap.S().Infof(fmt.Sprintf("Stream [%s / %s]: ", s.opts.logTag(), s.opts.Stream)+format, v...)
}
