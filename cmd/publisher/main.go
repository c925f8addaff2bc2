//go:build !no_serial
// +build !no_serial

package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/tarm/serial"

	"github.com/sensorhub/internal/mqttclient"
)

// publisher feeds the ingest pipeline from a serial-attached device, or from
// a simulator when no hardware is around. Payloads carry the time/sensor
// fields the normalizer extracts.
func main() {
	port := flag.String("port", "/dev/ttyUSB0", "serial port for the device")
	baud := flag.Int("baud", 9600, "serial baud rate")
	broker := flag.String("broker", "tcp://localhost:1883", "mqtt broker")
	topic := flag.String("topic", "Sensor_Kursi_Alvin", "publish topic")
	username := flag.String("username", "SENSOR_KURSI_IGNITE", "mqtt username")
	sim := flag.Bool("sim", false, "simulate sensors instead of reading serial")
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

	publish := func(sensor map[string]interface{}) {
		msg := map[string]interface{}{
			"time":   time.Now().Format(time.RFC3339),
			"sensor": sensor,
		}
		b, _ := json.Marshal(msg)
		if err := mqttc.Publish(*topic, b, 0, false); err != nil {
			log.Printf("publish err: %v", err)
		} else {
			log.Printf("published %s", string(b))
		}
	}

	if *sim {
		for {
			publish(map[string]interface{}{
				"pressure": rand.Intn(1024),
				"occupied": rand.Intn(2) == 1,
			})
			time.Sleep(1 * time.Second)
		}
	}

	c := &serial.Config{Name: *port, Baud: *baud}
	s, err := serial.OpenPort(c)
	if err != nil {
		log.Fatalf("open serial: %v", err)
	}
	// Lines arrive as "name,value" pairs, one reading per line.
	scanner := bufio.NewScanner(s)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		sensor := map[string]interface{}{}
		name, valStr, ok := strings.Cut(line, ",")
		if !ok {
			sensor["raw"] = line
		} else if val, err := strconv.ParseFloat(strings.TrimSpace(valStr), 64); err == nil {
			sensor[strings.TrimSpace(name)] = val
		} else {
			sensor[strings.TrimSpace(name)] = strings.TrimSpace(valStr)
		}
		publish(sensor)
	}
	if err := scanner.Err(); err != nil {
		log.Printf("serial read err: %v", err)
	}
}
