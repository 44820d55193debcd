// Package moustique defines the client-side model of the Moustique pub/sub broker:
// the Client interface, message handlers, the subscription registry, and the
// monitor hook used to observe best-effort operations.
//
// A concrete HTTP client lives in the client subpackage:
//
//	c, err := client.NewClient().
//		WithHost("127.0.0.1").
//		WithPort(33335).
//		WithClientName("sensor").
//		Build()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	c.Subscribe(ctx, "/test/topic", moustique.HandlerFunc(
//		func(ctx context.Context, topic, message, from string) error {
//			fmt.Println(topic, message, from)
//			return nil
//		}))
//
//	for {
//		c.Tick(ctx)
//		time.Sleep(time.Second)
//	}
//
// Delivery is poll based: messages only arrive when the application calls Tick
// (or Pickup), either directly or through the poller subpackage.
//
// Publish, PutVal, Subscribe, Resubscribe and Pickup are fire-and-forget. Failures
// are logged and reported to an optional ClientMonitor, never returned.
package moustique
