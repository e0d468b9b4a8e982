package server

import (
	"crypto/md5"

	"github.com/google/uuid"
)

// OfflineUUID derives the id vanilla servers give a player in offline mode:
// a version 3 UUID of "OfflinePlayer:<name>" without a namespace.
func OfflineUUID(name string) uuid.UUID {
	sum := md5.Sum([]byte("OfflinePlayer:" + name))
	sum[6] = sum[6]&0x0f | 0x30
	sum[8] = sum[8]&0x3f | 0x80

	id, _ := uuid.FromBytes(sum[:])
	return id
}
