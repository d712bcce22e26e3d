// Package discordgo provides Discord adapters using package github.com/bwmarrin/discordgo
package discordgo

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ReadOpusContainer reads opus packets framed as a little-endian int16 length
// followed by the packet bytes (the DCA layout).
func ReadOpusContainer(r io.Reader) ([][]byte, error) {
	var packets [][]byte
	var frameLen int16
	for {
		if err := binary.Read(r, binary.LittleEndian, &frameLen); err != nil {
			if errors.Is(err, io.EOF) {
				return packets, nil
			}
			return nil, fmt.Errorf("failed to read frame length: %w", err)
		}
		if frameLen <= 0 {
			return nil, fmt.Errorf("invalid frame length %d at packet %d", frameLen, len(packets))
		}

		packet := make([]byte, frameLen)
		if _, err := io.ReadFull(r, packet); err != nil {
			return nil, fmt.Errorf("failed to read packet %d: %w", len(packets), err)
		}
		packets = append(packets, packet)
	}
}
