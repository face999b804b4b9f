package eventdto

import (
	"encoding/json"
	"fmt"
)

// Raw market feed messages from the Dhan live feed. Price fields arrive as
// strings and are parsed at the normalization step.

const (
	FeedTypeTicker     = "Ticker Data"
	FeedTypeQuote      = "Quote Data"
	FeedTypePrevClose  = "Previous Close"
	FeedTypeDisconnect = "Disconnect"
)

type FeedPacketDTO struct {
	Type             string `json:"type"`
	ExchangeSegment  int    `json:"exchange_segment"`
	SecurityID       string `json:"security_id"`
	Ltp              string `json:"LTP"`
	Ltt              string `json:"LTT"`
	Volume           string `json:"volume"`
	AvgPrice         string `json:"avg_price"`
	DayOpen          string `json:"open"`
	PrevClose        string `json:"prev_close"`
	TotalTradedValue string `json:"total_traded_value"`
	DisconnectCode   int    `json:"disconnect_code,omitempty"`
}

func ParseFeedPacket(data []byte) (*FeedPacketDTO, error) {
	var dto FeedPacketDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, fmt.Errorf("ParseFeedPacket: failed to unmarshal json: %w", err)
	}

	return &dto, nil
}

const (
	RequestCodeSubscribeQuote   = 17
	RequestCodeUnsubscribeQuote = 18
	RequestCodeDisconnect       = 12
)

type SubscribeInstrumentDTO struct {
	ExchangeSegment string `json:"ExchangeSegment"`
	SecurityID      string `json:"SecurityId"`
}

type SubscribeRequestDTO struct {
	RequestCode     int                      `json:"RequestCode"`
	InstrumentCount int                      `json:"InstrumentCount"`
	InstrumentList  []SubscribeInstrumentDTO `json:"InstrumentList"`
}

func NewSubscribeRequest(code int, securityIDs []string) *SubscribeRequestDTO {
	instruments := make([]SubscribeInstrumentDTO, 0, len(securityIDs))
	for _, id := range securityIDs {
		instruments = append(instruments, SubscribeInstrumentDTO{
			ExchangeSegment: "NSE_EQ",
			SecurityID:      id,
		})
	}

	return &SubscribeRequestDTO{
		RequestCode:     code,
		InstrumentCount: len(instruments),
		InstrumentList:  instruments,
	}
}
