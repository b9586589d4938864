package envelope

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Fontes (domínios produtores) conhecidas do barramento
const (
	SourceThirdParty = "com.thirdparty"
	SourceTrading    = "com.trading"
	SourceLiveMarket = "com.livemarket"
	SourceBetting    = "com.betting"
	SourceSettlement = "com.betting.settlement"
	SourceAuth       = "com.auth"
	SourceWallet     = "com.wallet"
)

// Tipos de evento (detail-type) trocados entre os handlers
const (
	TypeUpdatedOdds           = "UpdatedOdds"
	TypeEventClosed           = "EventClosed"
	TypeMarketSuspended       = "MarketSuspended"
	TypeMarketUnsuspended     = "MarketUnsuspended"
	TypeMarketClosed          = "MarketClosed"
	TypeEventAdded            = "EventAdded"
	TypeSettlementStarted     = "SettlementStarted"
	TypeBetSettlementComplete = "BetSettlementComplete"
	TypeUserSignedUp          = "UserSignedUp"
	TypeWalletCreated         = "WalletCreated"
	TypeWalletCreateFailed    = "WalletCreateFailed"
)

var ErrMalformed = errors.New("malformed envelope")

// Outbound é o envelope publicado no barramento.
// Detail carrega o payload já serializado em JSON (string), igual ao contrato de publish.
type Outbound struct {
	Source       string `json:"Source"`
	DetailType   string `json:"DetailType"`
	Detail       string `json:"Detail"`
	EventBusName string `json:"EventBusName"`
}

// New monta um envelope de saída serializando o detail.
func New(source, detailType, busName string, detail any) (Outbound, error) {
	b, err := json.Marshal(detail)
	if err != nil {
		return Outbound{}, fmt.Errorf("marshal detail: %w", err)
	}
	return Outbound{
		Source:       source,
		DetailType:   detailType,
		Detail:       string(b),
		EventBusName: busName,
	}, nil
}

// WireJSON serializa o envelope na forma entregue aos consumidores, a mesma
// que Parse decodifica: chaves minúsculas/hifenizadas e detail embutido como
// objeto JSON. A forma PascalCase com Detail string é só o contrato de
// publicação; quem traduzia entre as duas era o roteador do barramento, e no
// tópico a tradução acontece aqui. EventBusName é roteamento, não trafega.
func (o Outbound) WireJSON() ([]byte, error) {
	detail := json.RawMessage(o.Detail)
	if !json.Valid(detail) {
		return nil, fmt.Errorf("detail is not valid JSON: %q", o.Detail)
	}
	return json.Marshal(Inbound{
		Source:     o.Source,
		DetailType: o.DetailType,
		Detail:     detail,
	})
}

// Inbound é o envelope como chega da fila.
// As chaves na entrada são minúsculas/hifenizadas ("detail-type"), diferente do
// publish em PascalCase; a assimetria é do contrato de ingestão e foi mantida.
type Inbound struct {
	Source     string          `json:"source"`
	DetailType string          `json:"detail-type"`
	Detail     json.RawMessage `json:"detail"`
}

// Parse decodifica o corpo de um registro da fila.
// Corpo vazio ou sem source/detail-type é tratado como malformado (descartado pelos handlers).
func Parse(body []byte) (Inbound, error) {
	var in Inbound
	if len(body) == 0 {
		return in, ErrMalformed
	}
	if err := json.Unmarshal(body, &in); err != nil {
		return in, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if in.Source == "" || in.DetailType == "" {
		return in, ErrMalformed
	}
	return in, nil
}

// Is compara o par (source, detail-type) do envelope.
func (in Inbound) Is(source, detailType string) bool {
	return in.Source == source && in.DetailType == detailType
}

// DecodeDetail desserializa o payload do envelope em v.
func (in Inbound) DecodeDetail(v any) error {
	if len(in.Detail) == 0 {
		return ErrMalformed
	}
	if err := json.Unmarshal(in.Detail, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}
