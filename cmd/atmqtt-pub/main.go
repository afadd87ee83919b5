// Command atmqtt-pub connects to a broker over TCP, publishes one message,
// and exits. It exists as a smoke test for the client core and its
// net.Conn-backed transport, in the spirit of gonzalop-mq's
// examples/simple and gobroke's cmd/gobroke entry points.
package main

import (
	"flag"
	"time"

	log "github.com/sirupsen/logrus"

	mqtt "github.com/embedmqtt/atmqtt"
	"github.com/embedmqtt/atmqtt/internal/tcptransport"
)

func main() {
	addr := flag.String("addr", "localhost:1883", "broker address")
	clientID := flag.String("id", "atmqtt-pub", "MQTT client id")
	topic := flag.String("topic", "atmqtt/pub", "topic to publish to")
	payload := flag.String("message", "hello", "payload to publish")
	qos := flag.Int("qos", 0, "QoS level (0, 1 or 2)")
	retain := flag.Bool("retain", false, "set the RETAIN flag")
	timeout := flag.Duration("timeout", 10*time.Second, "overall deadline")
	flag.Parse()

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	done := make(chan error, 1)

	var client *mqtt.Client
	handler := func(c *mqtt.Client, ev mqtt.Event) {
		switch ev.Type {
		case mqtt.EventConnect:
			if ev.ConnectReturnCode != mqtt.ReturnCodeAccepted {
				done <- &connectError{ev.ConnectReturnCode}
				return
			}
			err := c.Publish(*topic, []byte(*payload), mqtt.QoSLevel(*qos), *retain)
			if err != nil {
				done <- err
				return
			}
			if *qos == 0 {
				done <- c.Disconnect()
			}
		case mqtt.EventPublish:
			done <- c.Disconnect()
		case mqtt.EventClosed:
			select {
			case done <- nil:
			default:
			}
		}
	}

	transport := tcptransport.New(clientAdapter{&client})
	client = mqtt.NewClient(transport, handler, mqtt.WithRequestTimeout(*timeout))

	if err := client.Connect(*addr, mqtt.ClientInfo{
		ClientID:  *clientID,
		KeepAlive: 30,
	}); err != nil {
		log.WithError(err).Fatal("atmqtt-pub: connect failed")
	}

	select {
	case err := <-done:
		if err != nil {
			log.WithError(err).Fatal("atmqtt-pub: publish failed")
		}
	case <-time.After(*timeout):
		log.Fatal("atmqtt-pub: timed out")
	}
}

type connectError struct {
	rc mqtt.ConnectReturnCode
}

func (e *connectError) Error() string { return "broker rejected connection: " + e.rc.String() }

// clientAdapter breaks the natural import cycle between main (which needs
// a *mqtt.Client to exist before constructing a Transport) and
// tcptransport.Client (which tcptransport.New needs immediately) by
// resolving the pointer lazily on first use.
type clientAdapter struct {
	client **mqtt.Client
}

func (a clientAdapter) OnConnected()          { (*a.client).OnConnected() }
func (a clientAdapter) OnConnError(err error) { (*a.client).OnConnError(err) }
func (a clientAdapter) OnRecv(p []byte)       { (*a.client).OnRecv(p) }
func (a clientAdapter) OnSent(n int)          { (*a.client).OnSent(n) }
func (a clientAdapter) OnClose()              { (*a.client).OnClose() }
