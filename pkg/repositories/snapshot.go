package repositories

import (
	"encoding/json"
	"fmt"

	"github.com/cbodonnell/minegrid/pkg/game/types"
	"github.com/klauspost/compress/zstd"
)

// encoder and decoder are safe for concurrent EncodeAll/DecodeAll calls
var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	decoder, _ = zstd.NewReader(nil)
)

// encodeSnapshot serializes a session as zstd compressed JSON.
func encodeSnapshot(session *types.Session) ([]byte, error) {
	b, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %v", err)
	}
	return encoder.EncodeAll(b, make([]byte, 0, len(b))), nil
}

func decodeSnapshot(data []byte) (*types.Session, error) {
	b, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress snapshot: %v", err)
	}
	session := &types.Session{}
	if err := json.Unmarshal(b, session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %v", err)
	}
	return session, nil
}
