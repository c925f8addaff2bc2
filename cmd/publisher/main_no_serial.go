//go:build no_serial
// +build no_serial

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/sensorhub/internal/mqttclient"
)

func main() {
	broker := flag.String("broker", "tcp://localhost:1883", "mqtt broker")
	topic := flag.String("topic", "Sensor_Kursi_Alvin", "publish topic")
	username := flag.String("username", "SENSOR_KURSI_IGNITE", "mqtt username")
	flag.Parse()

	mqttc, err := mqttclient.New(mqttclient.Options{
		BrokerURL: *broker,
		ClientID:  fmt.Sprintf("device-pub-%d", time.Now().UnixNano()),
		Username:  *username,
	})
	if err != nil {
		log.Fatalf("mqtt connect: %v", err)
	}
	defer mqttc.Close()

	for {
		msg := map[string]interface{}{
			"time": time.Now().Format(time.RFC3339),
			"sensor": map[string]interface{}{
				"pressure": rand.Intn(1024),
				"occupied": rand.Intn(2) == 1,
			},
		}
		b, _ := json.Marshal(msg)
		if err := mqttc.Publish(*topic, b, 0, false); err != nil {
			log.Printf("publish err: %v", err)
		} else {
			log.Printf("published simulated -> %s", string(b))
		}
		time.Sleep(1 * time.Second)
	}
}
