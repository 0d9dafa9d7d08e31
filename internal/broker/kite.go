package broker

import (
	"context"
	"fmt"
	"os"
	"strings"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"
	"go.uber.org/zap"

	"gtt-sync/internal/call"
	"gtt-sync/internal/config"
)

// Kite 封装 Zerodha Kite 接口，所有调用都经过限流重试层。
type Kite struct {
	client *kiteconnect.Client
	caller *call.Caller
	logger *zap.Logger
}

// NewKite 构造券商客户端。访问令牌可直接配置，也可指向令牌文件。
func NewKite(cfg config.BrokerConfig, caller *call.Caller, logger *zap.Logger) (*Kite, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	token := cfg.AccessToken
	if token == "" && cfg.AccessTokenFile != "" {
		raw, err := os.ReadFile(cfg.AccessTokenFile)
		if err != nil {
			return nil, fmt.Errorf("读取访问令牌文件失败: %w", err)
		}
		token = strings.TrimSpace(string(raw))
	}
	if token == "" {
		return nil, fmt.Errorf("broker: 访问令牌为空")
	}

	kc := kiteconnect.New(cfg.APIKey)
	kc.SetAccessToken(token)

	return &Kite{
		client: kc,
		caller: caller,
		logger: logger,
	}, nil
}

// ValidateSession 通过拉取账户信息验证令牌有效性。
func (k *Kite) ValidateSession(ctx context.Context) error {
	return k.caller.Do(ctx, "profile", func() error {
		_, err := k.client.GetUserProfile()
		return err
	})
}

// PlaceGTT 提交一笔单触发条件单，返回券商分配的触发单编号。
func (k *Kite) PlaceGTT(ctx context.Context, req GTTRequest) (int, error) {
	var triggerID int
	err := k.caller.Do(ctx, "place_gtt", func() error {
		resp, err := k.client.PlaceGTT(gttParams(req))
		if err != nil {
			return err
		}
		if resp.TriggerID == 0 {
			return fmt.Errorf("broker: 下单响应缺少触发单编号")
		}
		triggerID = resp.TriggerID
		return nil
	})
	if err != nil {
		return 0, err
	}

	k.logger.Debug("条件单已提交",
		zap.String("symbol", req.Symbol),
		zap.String("exchange", req.Exchange),
		zap.Int("trigger_id", triggerID),
		zap.Float64("trigger_price", req.TriggerPrice),
	)
	return triggerID, nil
}

// ModifyGTT 修改一笔既有触发单。
func (k *Kite) ModifyGTT(ctx context.Context, triggerID int, req GTTRequest) error {
	return k.caller.Do(ctx, "modify_gtt", func() error {
		_, err := k.client.ModifyGTT(triggerID, gttParams(req))
		return err
	})
}

// DeleteGTT 撤销一笔既有触发单。
func (k *Kite) DeleteGTT(ctx context.Context, triggerID int) error {
	return k.caller.Do(ctx, "delete_gtt", func() error {
		_, err := k.client.DeleteGTT(triggerID)
		return err
	})
}

// PlaceOrder 提交一笔即时限价单。
func (k *Kite) PlaceOrder(ctx context.Context, req OrderRequest) (string, error) {
	var orderID string
	err := k.caller.Do(ctx, "place_order", func() error {
		resp, err := k.client.PlaceOrder(req.Variety, kiteconnect.OrderParams{
			Exchange:        req.Exchange,
			Tradingsymbol:   req.Symbol,
			TransactionType: req.Side,
			Quantity:        req.Units,
			OrderType:       orderTypeLimit,
			Product:         productCNC,
			Price:           req.Price,
			Validity:        validityDay,
		})
		if err != nil {
			return err
		}
		orderID = resp.OrderID
		return nil
	})
	if err != nil {
		return "", err
	}
	return orderID, nil
}

// FetchGTTs 拉取券商侧全部在途触发单。
func (k *Kite) FetchGTTs(ctx context.Context) ([]GTTOrder, error) {
	var raw kiteconnect.GTTs
	err := k.caller.Do(ctx, "fetch_gtts", func() error {
		gtts, err := k.client.GetGTTs()
		if err != nil {
			return err
		}
		raw = gtts
		return nil
	})
	if err != nil {
		return nil, err
	}

	orders := make([]GTTOrder, 0, len(raw))
	for _, g := range raw {
		order := GTTOrder{
			ID:          g.ID,
			TriggerType: string(g.Type),
			Status:      g.Status,
		}
		order.Symbol = g.Condition.Tradingsymbol
		order.Exchange = g.Condition.Exchange
		if len(g.Condition.TriggerValues) > 0 {
			order.TriggerValue = g.Condition.TriggerValues[0]
		}
		if len(g.Orders) > 0 {
			leg := g.Orders[0]
			order.OrderPrice = leg.Price
			order.Quantity = leg.Quantity
			order.OrderType = leg.OrderType
			order.Product = leg.Product
			order.TransactionType = leg.TransactionType
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func gttParams(req GTTRequest) kiteconnect.GTTParams {
	return kiteconnect.GTTParams{
		Tradingsymbol:   req.Symbol,
		Exchange:        req.Exchange,
		LastPrice:       req.LastPrice,
		TransactionType: req.Side,
		Trigger: &kiteconnect.GTTSingleLegTrigger{
			TriggerParams: kiteconnect.TriggerParams{
				TriggerValue: req.TriggerPrice,
				LimitPrice:   req.LimitPrice,
				Quantity:     float64(req.Units),
			},
		},
	}
}
