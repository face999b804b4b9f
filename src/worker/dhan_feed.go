package worker

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/kmehta2012/ladder-trading/src/eventdto"
	"github.com/kmehta2012/ladder-trading/src/eventmodels"
	"github.com/kmehta2012/ladder-trading/src/eventpubsub"
)

const (
	feedReadDeadline      = 30 * time.Second
	feedWriteDeadline     = 5 * time.Second
	feedBaseReconnectWait = 5 * time.Second
	feedMaxReconnectWait  = 60 * time.Second
	feedMaxReconnects     = 10
	feedSubscribeChunk    = 100
)

// SymbolResolver maps broker security ids back to trading symbols. The scrip
// master implements this.
type SymbolResolver interface {
	SymbolForSecurityID(securityID string) (eventmodels.StockSymbol, bool)
}

type feedSecurityState struct {
	prevClose float64
	dayOpen   float64
	volume    int64
	turnover  float64
}

// DhanFeedClient owns the websocket connection to the broker's live market
// feed. It normalizes raw packets into eventmodels.Tick and publishes them
// on the bus. Reconnects use exponential backoff (5s doubling, capped at
// 60s); after ten consecutive failures the client reports a fatal feed-down
// status and stops.
type DhanFeedClient struct {
	wg          *sync.WaitGroup
	feedURL     string
	clientID    string
	accessToken string
	resolver    SymbolResolver
	clock       *eventmodels.MarketClock

	mutex      sync.Mutex
	conn       *websocket.Conn
	subscribed map[string]struct{}
	state      map[string]*feedSecurityState
	connected  bool
}

func NewDhanFeedClient(wg *sync.WaitGroup, feedURL, clientID, accessToken string, resolver SymbolResolver, clock *eventmodels.MarketClock) *DhanFeedClient {
	return &DhanFeedClient{
		wg:          wg,
		feedURL:     feedURL,
		clientID:    clientID,
		accessToken: accessToken,
		resolver:    resolver,
		clock:       clock,
		subscribed:  make(map[string]struct{}),
		state:       make(map[string]*feedSecurityState),
	}
}

// ReconnectWait is the backoff before reconnect attempt n (1-based).
func ReconnectWait(attempt int) time.Duration {
	wait := feedBaseReconnectWait
	for i := 1; i < attempt; i++ {
		wait *= 2
		if wait >= feedMaxReconnectWait {
			return feedMaxReconnectWait
		}
	}

	return wait
}

func (c *DhanFeedClient) connect() (*websocket.Conn, error) {
	u, err := url.Parse(c.feedURL)
	if err != nil {
		return nil, fmt.Errorf("DhanFeedClient:connect(): failed to parse feed url: %w", err)
	}

	q := u.Query()
	q.Set("version", "2")
	q.Set("token", c.accessToken)
	q.Set("clientId", c.clientID)
	q.Set("authType", "2")
	u.RawQuery = q.Encode()

	log.Infof("connecting to market feed at %s", u.Host)

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("DhanFeedClient:connect(): dial failed: %w", err)
	}

	if conn == nil {
		return nil, fmt.Errorf("DhanFeedClient:connect(): connection is nil")
	}

	return conn, nil
}

// Subscribe adds security ids to the live subscription. Safe to call before
// the connection is up; the set replays on every (re)connect.
func (c *DhanFeedClient) Subscribe(securityIDs []string) error {
	c.mutex.Lock()
	fresh := make([]string, 0, len(securityIDs))
	for _, id := range securityIDs {
		if _, ok := c.subscribed[id]; !ok {
			c.subscribed[id] = struct{}{}
			fresh = append(fresh, id)
		}
	}
	conn := c.conn
	c.mutex.Unlock()

	if conn == nil || len(fresh) == 0 {
		return nil
	}

	return c.writeSubscription(conn, eventdto.RequestCodeSubscribeQuote, fresh)
}

func (c *DhanFeedClient) Unsubscribe(securityIDs []string) error {
	c.mutex.Lock()
	removed := make([]string, 0, len(securityIDs))
	for _, id := range securityIDs {
		if _, ok := c.subscribed[id]; ok {
			delete(c.subscribed, id)
			removed = append(removed, id)
		}
	}
	conn := c.conn
	c.mutex.Unlock()

	if conn == nil || len(removed) == 0 {
		return nil
	}

	return c.writeSubscription(conn, eventdto.RequestCodeUnsubscribeQuote, removed)
}

func (c *DhanFeedClient) writeSubscription(conn *websocket.Conn, code int, securityIDs []string) error {
	for start := 0; start < len(securityIDs); start += feedSubscribeChunk {
		end := min(start+feedSubscribeChunk, len(securityIDs))

		payload := eventdto.NewSubscribeRequest(code, securityIDs[start:end])

		conn.SetWriteDeadline(time.Now().Add(feedWriteDeadline))
		if err := conn.WriteJSON(payload); err != nil {
			return fmt.Errorf("DhanFeedClient:writeSubscription(): failed to write json: %w", err)
		}
	}

	return nil
}

func (c *DhanFeedClient) resubscribeAll(conn *websocket.Conn) error {
	c.mutex.Lock()
	ids := make([]string, 0, len(c.subscribed))
	for id := range c.subscribed {
		ids = append(ids, id)
	}
	c.mutex.Unlock()

	if len(ids) == 0 {
		return nil
	}

	return c.writeSubscription(conn, eventdto.RequestCodeSubscribeQuote, ids)
}

func (c *DhanFeedClient) IsConnected() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.connected
}

func (c *DhanFeedClient) setConn(conn *websocket.Conn) {
	c.mutex.Lock()
	c.conn = conn
	c.connected = conn != nil
	c.mutex.Unlock()
}

func (c *DhanFeedClient) Start(ctx context.Context) {
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		conn, err := c.connectWithRetry(ctx)
		if err != nil {
			return
		}

		c.setConn(conn)
		c.resubscribeOrLog(conn)
		eventpubsub.Publish("DhanFeedClient", eventmodels.FeedStatusEventName, eventmodels.FeedStatusEvent{Connected: true})

		for {
			select {
			case <-ctx.Done():
				log.Info("stopping DhanFeedClient consumer")
				c.closeConn()
				return
			default:
				conn.SetReadDeadline(time.Now().UTC().Add(feedReadDeadline))
				_, message, err := conn.ReadMessage()
				if err != nil {
					if ctx.Err() != nil {
						log.Info("stopping DhanFeedClient consumer")
						c.closeConn()
						return
					}

					log.Errorf("DhanFeedClient: ReadMessage(): %v", err)
					c.setConn(nil)
					eventpubsub.Publish("DhanFeedClient", eventmodels.FeedStatusEventName, eventmodels.FeedStatusEvent{Connected: false, Err: err.Error()})

					conn.Close()

					conn, err = c.connectWithRetry(ctx)
					if err != nil {
						return
					}

					c.setConn(conn)
					c.resubscribeOrLog(conn)
					eventpubsub.Publish("DhanFeedClient", eventmodels.FeedStatusEventName, eventmodels.FeedStatusEvent{Connected: true})
					continue
				}

				c.handleMessage(message)
			}
		}
	}()
}

// connectWithRetry keeps dialing until a connection lands or the reconnect
// budget runs out. A nil error always carries a live connection.
func (c *DhanFeedClient) connectWithRetry(ctx context.Context) (*websocket.Conn, error) {
	for attempt := 1; attempt <= feedMaxReconnects; attempt++ {
		conn, err := c.connect()
		if err == nil {
			return conn, nil
		}

		wait := ReconnectWait(attempt)
		log.Errorf("DhanFeedClient: connect attempt %d/%d failed: %v, retrying in %v", attempt, feedMaxReconnects, err, wait)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}

	log.Error("DhanFeedClient: reconnect budget exhausted, feed is down")
	eventpubsub.Publish("DhanFeedClient", eventmodels.FeedStatusEventName, eventmodels.FeedStatusEvent{
		Connected: false,
		Fatal:     true,
		Attempts:  feedMaxReconnects,
		Err:       "reconnect budget exhausted",
	})

	return nil, fmt.Errorf("DhanFeedClient:connectWithRetry(): gave up after %d attempts", feedMaxReconnects)
}

func (c *DhanFeedClient) resubscribeOrLog(conn *websocket.Conn) {
	if err := c.resubscribeAll(conn); err != nil {
		log.Errorf("DhanFeedClient: resubscribe failed: %v", err)
	}
}

func (c *DhanFeedClient) closeConn() {
	c.mutex.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connected = false
	c.mutex.Unlock()
}

func (c *DhanFeedClient) handleMessage(message []byte) {
	dto, err := eventdto.ParseFeedPacket(message)
	if err != nil {
		log.Debugf("DhanFeedClient: skipping unparsable packet: %v", err)
		return
	}

	switch dto.Type {
	case eventdto.FeedTypePrevClose:
		c.mergePrevClose(dto)
	case eventdto.FeedTypeTicker, eventdto.FeedTypeQuote:
		tick, ok := c.NormalizeTick(dto)
		if !ok {
			return
		}

		eventpubsub.Publish("DhanFeedClient", eventmodels.NewTickEventName, tick)
	case eventdto.FeedTypeDisconnect:
		log.Warnf("DhanFeedClient: server disconnect notice, code=%d", dto.DisconnectCode)
	default:
		log.Tracef("DhanFeedClient: ignoring packet type %q", dto.Type)
	}
}

func (c *DhanFeedClient) securityState(securityID string) *feedSecurityState {
	st, ok := c.state[securityID]
	if !ok {
		st = &feedSecurityState{}
		c.state[securityID] = st
	}

	return st
}

func (c *DhanFeedClient) mergePrevClose(dto *eventdto.FeedPacketDTO) {
	prevClose, err := strconv.ParseFloat(dto.PrevClose, 64)
	if err != nil {
		return
	}

	c.mutex.Lock()
	c.securityState(dto.SecurityID).prevClose = prevClose
	c.mutex.Unlock()
}

// NormalizeTick merges a raw packet with the per-security running state and
// produces the canonical tick. Returns false for packets that cannot yield a
// valid tick.
func (c *DhanFeedClient) NormalizeTick(dto *eventdto.FeedPacketDTO) (*eventmodels.Tick, bool) {
	symbol, ok := c.resolver.SymbolForSecurityID(dto.SecurityID)
	if !ok {
		log.Debugf("DhanFeedClient: no symbol for security id %s", dto.SecurityID)
		return nil, false
	}

	ltp, err := strconv.ParseFloat(dto.Ltp, 64)
	if err != nil || ltp <= 0 {
		return nil, false
	}

	c.mutex.Lock()
	st := c.securityState(dto.SecurityID)

	if open, err := strconv.ParseFloat(dto.DayOpen, 64); err == nil && open > 0 {
		st.dayOpen = open
	}

	if vol, err := strconv.ParseInt(dto.Volume, 10, 64); err == nil && vol > 0 {
		st.volume = vol
	}

	if value, err := strconv.ParseFloat(dto.TotalTradedValue, 64); err == nil && value > 0 {
		st.turnover = value
	} else if avg, err := strconv.ParseFloat(dto.AvgPrice, 64); err == nil && avg > 0 && st.volume > 0 {
		st.turnover = avg * float64(st.volume)
	}

	tick := &eventmodels.Tick{
		Symbol:     symbol,
		Ltp:        ltp,
		PrevClose:  st.prevClose,
		DayOpen:    st.dayOpen,
		Volume:     st.volume,
		Turnover:   st.turnover,
		Timestamp:  c.exchangeTimestamp(dto.Ltt),
		ReceivedAt: time.Now().UTC(),
	}
	c.mutex.Unlock()

	if err := tick.Validate(); err != nil {
		return nil, false
	}

	return tick, true
}

// exchangeTimestamp rebuilds a full timestamp from the feed's HH:MM:SS last
// trade time, anchored to today's date in exchange time.
func (c *DhanFeedClient) exchangeTimestamp(ltt string) time.Time {
	now := time.Now().In(c.clock.Location)

	parsed, err := time.Parse("15:04:05", ltt)
	if err != nil {
		return now
	}

	return time.Date(now.Year(), now.Month(), now.Day(), parsed.Hour(), parsed.Minute(), parsed.Second(), 0, c.clock.Location)
}
