package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/sanosuguru/go-flight-reservation/internal/domain/reservation"
)

// DefaultQueue は予約イベントを流すキュー名
const DefaultQueue = "reservation.events"

// defaultDialTimeout は ctx に期限がない場合の接続タイムアウト
const defaultDialTimeout = 5 * time.Second

// Publisher は予約イベントを RabbitMQ のキューへ送信する
// 送信ごとに接続・チャネルを開き、終了時に閉じる
type Publisher struct {
	url   string
	queue string
}

// NewPublisher は新しい Publisher を作成する
func NewPublisher(url, queue string) *Publisher {
	if queue == "" {
		queue = DefaultQueue
	}
	return &Publisher{url: url, queue: queue}
}

// Publish はイベントを永続メッセージとして送信する
func (p *Publisher) Publish(ctx context.Context, ev reservation.Event) error {
	pub, err := newPublishing(ev)
	if err != nil {
		return err
	}

	timeout, err := dialTimeout(ctx)
	if err != nil {
		return fmt.Errorf("RabbitMQ接続に失敗: %w", err)
	}
	conn, err := amqp.DialConfig(p.url, amqp.Config{Dial: amqp.DefaultDial(timeout)})
	if err != nil {
		return fmt.Errorf("RabbitMQ接続に失敗: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("チャネル作成に失敗: %w", err)
	}
	defer ch.Close()

	// キュー宣言は冪等
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("キュー宣言に失敗: %w", err)
	}

	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		return fmt.Errorf("イベント送信に失敗: %w", err)
	}
	return nil
}

// dialTimeout は ctx の残り時間を接続タイムアウトとして返す
func dialTimeout(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		return defaultDialTimeout, nil
	}
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return 0, context.DeadlineExceeded
	}
	return remaining, nil
}

func newPublishing(ev reservation.Event) (amqp.Publishing, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("イベントのエンコードに失敗: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         string(ev.Type),
		MessageId:    fmt.Sprintf("%s:%d:%d", ev.Type, ev.ReservationID, ev.OccurredAt.UnixNano()),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}, nil
}
