package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const (
	sessionFormatVersionCurrent = 1
)

func Encode(s *Session) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(sessionFormatVersionCurrent)

	if len(s.MemberID) > 255 {
		return nil, errors.New("memberID too long")
	}
	buf.WriteByte(byte(len(s.MemberID)))
	buf.WriteString(s.MemberID)

	if len(s.IP) > 255 {
		return nil, errors.New("ip too long")
	}
	buf.WriteByte(byte(len(s.IP)))
	buf.WriteString(s.IP)

	if len(s.UserAgent) > 255 {
		return nil, errors.New("user agent too long")
	}
	buf.WriteByte(byte(len(s.UserAgent)))
	buf.WriteString(s.UserAgent)

	var flags byte
	if s.RememberMe {
		flags |= 1 << 0
	}
	if s.Active {
		flags |= 1 << 1
	}
	buf.WriteByte(flags)

	if err := binary.Write(&buf, binary.BigEndian, s.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.LastActiveAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.ExpiresAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != sessionFormatVersionCurrent {
		return nil, errors.New("invalid session version")
	}

	s := &Session{}

	memberLen, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	memberID := make([]byte, memberLen)
	if _, err := io.ReadFull(reader, memberID); err != nil {
		return nil, err
	}
	s.MemberID = string(memberID)

	ipLen, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	ip := make([]byte, ipLen)
	if _, err := io.ReadFull(reader, ip); err != nil {
		return nil, err
	}
	s.IP = string(ip)

	uaLen, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	userAgent := make([]byte, uaLen)
	if _, err := io.ReadFull(reader, userAgent); err != nil {
		return nil, err
	}
	s.UserAgent = string(userAgent)

	flags, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	s.RememberMe = flags&(1<<0) != 0
	s.Active = flags&(1<<1) != 0

	if err := binary.Read(reader, binary.BigEndian, &s.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &s.LastActiveAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &s.ExpiresAt); err != nil {
		return nil, err
	}

	return s, nil
}
