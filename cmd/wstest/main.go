// Command wstest is a load testing tool for the chat WebSocket endpoint.
// It logs in once, then opens many concurrent connections (each with its own
// single-use ticket), pings on an interval, and reports delivery counters.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

type metrics struct {
	connectionsAttempted int64
	connectionsSuccess   int64
	connectionsFailed    int64
	framesSent           int64
	framesReceived       int64
	errors               int64
}

var m metrics

func main() {
	host := flag.String("host", "localhost:8480", "API server host")
	email := flag.String("email", "alice@example.com", "Test user email")
	password := flag.String("password", "password123", "Test user password")
	clients := flag.Int("clients", 50, "Number of concurrent connections")
	duration := flag.Duration("duration", 30*time.Second, "Test duration")
	interval := flag.Duration("interval", 5*time.Second, "Ping interval per connection")
	flag.Parse()

	log.Printf("Starting WebSocket load test against %s (%d clients, %v)", *host, *clients, *duration)

	token, err := login(*host, *email, *password)
	if err != nil {
		log.Fatalf("login failed: %v", err)
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < *clients; i++ {
		wg.Add(1)
		go runClient(*host, token, *interval, stop, &wg)
		// Stagger so ticket issuance does not hit the rate limiter.
		time.Sleep(50 * time.Millisecond)
	}

	select {
	case <-time.After(*duration):
		log.Println("test duration reached")
	case <-interrupt:
		log.Println("interrupted")
	}

	close(stop)
	wg.Wait()
	report()
}

func login(host, email, password string) (string, error) {
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	resp, err := http.Post(fmt.Sprintf("http://%s/api/auth/login", host), "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login failed with status %d", resp.StatusCode)
	}

	var result struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Token, nil
}

func getTicket(host, token string) (string, error) {
	req, _ := http.NewRequest(http.MethodPost, fmt.Sprintf("http://%s/api/ws/ticket", host), nil)
	req.Header.Set("Authorization", "Bearer "+token)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ticket issuance failed with status %d", resp.StatusCode)
	}

	var result struct {
		Ticket string `json:"ticket"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Ticket, nil
}

func runClient(host, token string, interval time.Duration, stop <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	atomic.AddInt64(&m.connectionsAttempted, 1)

	// Tickets are single-use, so every connection needs a fresh one.
	ticket, err := getTicket(host, token)
	if err != nil {
		atomic.AddInt64(&m.connectionsFailed, 1)
		atomic.AddInt64(&m.errors, 1)
		return
	}

	u := url.URL{Scheme: "ws", Host: host, Path: "/api/ws/chat", RawQuery: "ticket=" + ticket}
	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		atomic.AddInt64(&m.connectionsFailed, 1)
		atomic.AddInt64(&m.errors, 1)
		return
	}
	if resp != nil && resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	defer func() { _ = conn.Close() }()

	atomic.AddInt64(&m.connectionsSuccess, 1)

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			atomic.AddInt64(&m.framesReceived, 1)
		}
	}()

	if err := sendFrame(conn, "addUser", nil); err != nil {
		atomic.AddInt64(&m.errors, 1)
		return
	}
	atomic.AddInt64(&m.framesSent, 1)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ticker.C:
			if err := sendFrame(conn, "ping", nil); err != nil {
				atomic.AddInt64(&m.errors, 1)
				return
			}
			atomic.AddInt64(&m.framesSent, 1)
		}
	}
}

func sendFrame(conn *websocket.Conn, event string, data interface{}) error {
	frame := map[string]interface{}{"event": event}
	if data != nil {
		frame["data"] = data
	}
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func report() {
	log.Println("Results")
	log.Println("=======")
	log.Printf("Connections attempted: %d", atomic.LoadInt64(&m.connectionsAttempted))
	log.Printf("Connections successful: %d", atomic.LoadInt64(&m.connectionsSuccess))
	log.Printf("Connections failed: %d", atomic.LoadInt64(&m.connectionsFailed))
	log.Printf("Frames sent: %d", atomic.LoadInt64(&m.framesSent))
	log.Printf("Frames received: %d", atomic.LoadInt64(&m.framesReceived))
	log.Printf("Errors: %d", atomic.LoadInt64(&m.errors))
}
