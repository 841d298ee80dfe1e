// Package binance fetches futures mark prices used to value open positions.
package binance

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	futures "github.com/adshao/go-binance/v2/futures"
	"golang.org/x/time/rate"

	"clawdash/logger"
)

var listPricesFn = func(ctx context.Context, client *futures.Client, symbol string) ([]*futures.SymbolPrice, error) {
	return client.NewListPricesService().Symbol(symbol).Do(ctx)
}

// PriceSource looks up the latest futures price per coin against a quote asset.
type PriceSource struct {
	client  *futures.Client
	quote   string
	limiter *rate.Limiter
	log     *logger.Entry
}

// NewPriceSource builds an unauthenticated futures client. baseURL overrides
// the API endpoint when set.
func NewPriceSource(baseURL, quote string, rps float64, burst int, timeout time.Duration) *PriceSource {
	client := futures.NewClient("", "")
	if timeout > 0 {
		client.HTTPClient = &http.Client{Timeout: timeout}
	}
	if baseURL != "" {
		if parsed, err := url.Parse(baseURL); err == nil && parsed.Host != "" {
			client.SetApiEndpoint(fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host))
		}
	}
	if burst <= 0 {
		burst = 1
	}
	if rps <= 0 {
		rps = 5
	}
	return &PriceSource{
		client:  client,
		quote:   strings.ToUpper(quote),
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		log:     logger.GetLogger().WithComponent("binance_prices"),
	}
}

// kiloContracts are quoted on the futures market per 1000 coins.
var kiloContracts = map[string]bool{
	"BONK":  true,
	"FLOKI": true,
	"LUNC":  true,
	"PEPE":  true,
	"SHIB":  true,
}

// Symbol maps a ledger coin onto the exchange symbol.
func (p *PriceSource) Symbol(coin string) string {
	coin = strings.ToUpper(coin)
	if kiloContracts[coin] {
		return "1000" + coin + p.quote
	}
	return coin + p.quote
}

// Prices returns the latest price per coin. Coins the exchange does not list
// are logged and left out of the result.
func (p *PriceSource) Prices(ctx context.Context, coins []string) (map[string]float64, error) {
	prices := make(map[string]float64, len(coins))
	for _, coin := range coins {
		if _, done := prices[coin]; done {
			continue
		}
		if err := p.limiter.Wait(ctx); err != nil {
			return prices, err
		}

		symbol := p.Symbol(coin)
		start := time.Now()
		res, err := listPricesFn(ctx, p.client, symbol)
		logger.LogPerformanceEntry(p.log, "binance_prices", "list_prices", time.Since(start), logger.Fields{"symbol": symbol})
		if err != nil {
			p.log.WithError(err).WithFields(logger.Fields{"symbol": symbol}).Warn("price lookup failed")
			continue
		}
		price, ok := pick(res, symbol)
		if !ok {
			p.log.WithFields(logger.Fields{"symbol": symbol}).Warn("no usable price returned")
			continue
		}
		if kiloContracts[strings.ToUpper(coin)] {
			price /= 1000
		}
		prices[coin] = price
	}
	return prices, nil
}

func pick(res []*futures.SymbolPrice, symbol string) (float64, bool) {
	for _, sp := range res {
		if sp == nil || sp.Symbol != symbol {
			continue
		}
		v, err := strconv.ParseFloat(sp.Price, 64)
		if err != nil || v <= 0 {
			return 0, false
		}
		return v, true
	}
	return 0, false
}
