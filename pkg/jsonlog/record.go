package jsonlog

import (
	"bufio"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/opsdb/core/pkg/errs"
)

// header is the parsed form of one record's ASCII header line:
// "<MAGIC> <LEN> <SHA1>\n". LEN is the decimal byte length of the payload
// that follows; SHA1 is the hex digest of that payload (spec §3, §6.2).
type header struct {
	magic string
	len   int
	sha1  string
}

func (h header) String() string {
	return fmt.Sprintf("%s %d %s\n", h.magic, h.len, h.sha1)
}

// parseHeader splits one header line into its three fields. offset is used
// only to annotate the error with where in the file the bad header was
// found (spec §4.A: "an I/O error naming the offset").
func parseHeader(line string, offset int64) (header, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return header{}, errs.New(errs.KindIO, "malformed record header at offset %d", offset)
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil || n < 0 {
		return header{}, errs.New(errs.KindIO, "invalid payload length at offset %d", offset)
	}
	if len(fields[2]) != sha1.Size*2 {
		return header{}, errs.New(errs.KindIO, "invalid checksum length at offset %d", offset)
	}
	return header{magic: fields[0], len: n, sha1: fields[2]}, nil
}

// checksum hex-encodes the SHA-1 digest of payload, the algorithm spec §3
// fixes for every record.
func checksum(payload []byte) string {
	sum := sha1.Sum(payload)
	return hex.EncodeToString(sum[:])
}

// SniffMagic reads just enough of path's first record header to report
// which magic token the file was written with, without validating or
// consuming the rest of the record. pkg/inspect uses this to recognize
// either StandaloneMagic or ClusteredMagic before opening the log proper
// (spec §4.E: the inspection tool must recognize both).
func SniffMagic(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errs.Wrap(errs.KindIO, err, "open %s", path)
	}
	defer f.Close()

	line, err := bufio.NewReader(f).ReadString('\n')
	if err != nil {
		return "", errs.Wrap(errs.KindIO, err, "reading first record header of %s", path)
	}
	h, err := parseHeader(line, 0)
	if err != nil {
		return "", err
	}
	return h.magic, nil
}
