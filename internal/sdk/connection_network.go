package sdk

import (
	"fmt"
	"net"
	"sync"
	"time"
)

// NetworkConnection represents a raw TCP (port 9100) printer connection
type NetworkConnection struct {
	conn        net.Conn
	readTimeout time.Duration
	mu          sync.Mutex
}

// ConnectNetwork connects to a network printer
func ConnectNetwork(host string, port int, readTimeout time.Duration) (*NetworkConnection, error) {
	if port == 0 {
		port = 9100
	}
	address := net.JoinHostPort(host, fmt.Sprintf("%d", port))

	conn, err := net.DialTimeout("tcp", address, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to network printer: %w", err)
	}

	return &NetworkConnection{
		conn:        conn,
		readTimeout: readTimeout,
	}, nil
}

// Write sends data to the network printer
func (c *NetworkConnection) Write(data []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.conn.Write(data)
}

// Read reads a status reply from the network printer
func (c *NetworkConnection) Read(buf []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
		return 0, err
	}
	return c.conn.Read(buf)
}

// Close closes the network connection
func (c *NetworkConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return c.conn.Close()
	}

	return nil
}
