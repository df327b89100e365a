// Package mq provides end-to-end tests for the readings queue client.
package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	amqp "github.com/rabbitmq/amqp091-go"

	"carbonseed.io/console/pkg/api"
	clientmq "carbonseed.io/console/pkg/mq"
)

var _ = Describe("MQ Client E2E", func() {
	var (
		client *clientmq.Client
		queue  string
		ctx    context.Context
		cancel context.CancelFunc
	)

	BeforeEach(func() {
		queue = fmt.Sprintf("carbonseed.readings.e2e.%d", time.Now().UnixNano())
		ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)

		var err error
		client, err = clientmq.New(&clientmq.Config{
			Logger: testLogger,
			URL:    rabbitmqURL,
			Queue:  queue,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(client.WaitReady(ctx)).To(Succeed())
	})

	AfterEach(func() {
		Expect(client.Close()).To(Succeed())
		cancel()
	})

	It("should report ready once connected", func() {
		Expect(client.Ready()).To(BeTrue())
		Expect(client.Queue()).To(Equal(queue))
	})

	It("should deliver a published reading with its properties", func() {
		reading := api.Reading{DeviceID: 7, Temperature: api.Float(862.5), Timestamp: api.At(time.Now())}
		body, err := json.Marshal(reading)
		Expect(err).NotTo(HaveOccurred())

		Expect(client.Publish(ctx, body)).To(Succeed())

		deliveries, err := client.Consume()
		Expect(err).NotTo(HaveOccurred())

		var d amqp.Delivery
		Eventually(deliveries).WithTimeout(10 * time.Second).Should(Receive(&d))
		Expect(d.Body).To(MatchJSON(body))
		Expect(d.ContentType).To(Equal("application/json"))
		Expect(d.DeliveryMode).To(Equal(amqp.Persistent))
		_, err = uuid.Parse(d.MessageId)
		Expect(err).NotTo(HaveOccurred())
		Expect(d.Ack(false)).To(Succeed())
	})

	It("should keep message order for a single publisher", func() {
		for i := 1; i <= 5; i++ {
			Expect(client.Publish(ctx, []byte(fmt.Sprintf(`{"device_id":%d}`, i)))).To(Succeed())
		}

		deliveries, err := client.Consume()
		Expect(err).NotTo(HaveOccurred())

		for i := 1; i <= 5; i++ {
			var d amqp.Delivery
			Eventually(deliveries).WithTimeout(10 * time.Second).Should(Receive(&d))
			Expect(d.Body).To(MatchJSON(fmt.Sprintf(`{"device_id":%d}`, i)))
			Expect(d.Ack(false)).To(Succeed())
		}
	})

	It("should redeliver a message nacked with requeue", func() {
		Expect(client.Publish(ctx, []byte(`{"device_id":1}`))).To(Succeed())

		deliveries, err := client.Consume()
		Expect(err).NotTo(HaveOccurred())

		var first amqp.Delivery
		Eventually(deliveries).WithTimeout(10 * time.Second).Should(Receive(&first))
		Expect(first.Nack(false, true)).To(Succeed())

		var second amqp.Delivery
		Eventually(deliveries).WithTimeout(10 * time.Second).Should(Receive(&second))
		Expect(second.Redelivered).To(BeTrue())
		Expect(second.Body).To(Equal(first.Body))
		Expect(second.Ack(false)).To(Succeed())
	})

	It("should refuse to publish after close", func() {
		Expect(client.Close()).To(Succeed())
		err := client.Publish(ctx, []byte(`{}`))
		Expect(err).To(HaveOccurred())
	})
})
