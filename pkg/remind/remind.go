// Package remind runs the scheduled operator digest: every evening ahead
// of the purchasing run, pending orders are summarized and pushed to the
// operator so nothing sits unnoticed past a promo deadline.
package remind

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"daigo/pkg/chat"
	"daigo/pkg/logger"
	"daigo/pkg/store"
)

const digestTimeout = 30 * time.Second

type Reminder struct {
	cron       *cron.Cron
	store      *store.Store
	sender     chat.Sender
	operatorID string
	spec       string
}

func New(st *store.Store, sender chat.Sender, operatorID, spec string) *Reminder {
	return &Reminder{
		cron:       cron.New(),
		store:      st,
		sender:     sender,
		operatorID: operatorID,
		spec:       spec,
	}
}

func (r *Reminder) Start() error {
	if r.operatorID == "" {
		logger.WarnC("remind", "no operator configured, digest disabled")
		return nil
	}
	if _, err := r.cron.AddFunc(r.spec, r.run); err != nil {
		return fmt.Errorf("schedule digest: %w", err)
	}
	r.cron.Start()
	logger.InfoCF("remind", "digest scheduled", map[string]interface{}{
		"spec": r.spec,
	})
	return nil
}

func (r *Reminder) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}

func (r *Reminder) run() {
	ctx, cancel := context.WithTimeout(context.Background(), digestTimeout)
	defer cancel()

	digest, ok, err := r.Digest(ctx)
	if err != nil {
		logger.ErrorCF("remind", "digest build failed", map[string]interface{}{
			logger.FieldError: err.Error(),
		})
		return
	}
	if !ok {
		logger.DebugC("remind", "no pending orders, digest skipped")
		return
	}

	if err := r.sender.Push(ctx, r.operatorID, chat.NewText(digest)); err != nil {
		logger.ErrorCF("remind", "digest push failed", map[string]interface{}{
			logger.FieldError: err.Error(),
		})
	}
}

// Digest renders the pending order summary. The second return is false
// when there is nothing to report.
func (r *Reminder) Digest(ctx context.Context) (string, bool, error) {
	orders, err := r.store.PendingOrders(ctx)
	if err != nil {
		return "", false, err
	}
	if len(orders) == 0 {
		return "", false, nil
	}

	total := 0
	lines := []string{
		"📋 採購前訂單摘要",
		"━━━━━━━━━━━━━━━━━",
		fmt.Sprintf("待處理訂單 %d 筆：", len(orders)),
		"",
	}
	for i, o := range orders {
		itemCount := 0
		for _, item := range o.Items {
			itemCount += item.Quantity
		}
		total += o.TotalJPY
		lines = append(lines, fmt.Sprintf("%d. %s | %d 件 | ¥%d", i+1, o.CustomerName, itemCount, o.TotalJPY))
	}
	lines = append(lines, "", fmt.Sprintf("💰 合計：¥%d", total), "請於今日採購時間（約 22:00）前完成確認。")

	return strings.Join(lines, "\n"), true, nil
}
