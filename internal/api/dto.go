package api

import (
	"github.com/ziadomalik/ramwiz/internal/session"
	"github.com/ziadomalik/ramwiz/internal/trace"
)

type LoadTraceRequest struct {
	Path string `json:"path"`
}

type TraceMetaResponse struct {
	session.Metadata
	Version     uint8 `json:"version"`
	NumCommands uint8 `json:"numCommands"`
}

type EntryDTO struct {
	Clk       int64 `json:"clk"`
	Channel   int16 `json:"channel"`
	Rank      int16 `json:"rank"`
	Bankgroup int32 `json:"bankgroup"`
	Bank      int32 `json:"bank"`
	Row       int32 `json:"row"`
	Column    int32 `json:"column"`
	CmdID     uint8 `json:"cmdId"`
}

func entryDTO(e trace.Entry) EntryDTO {
	return EntryDTO{
		Clk:       e.Clk,
		Channel:   e.Channel,
		Rank:      e.Rank,
		Bankgroup: e.Bankgroup,
		Bank:      e.Bank,
		Row:       e.Row,
		Column:    e.Column,
		CmdID:     e.CmdID,
	}
}

type EntriesResponse struct {
	Start   uint64     `json:"start"`
	Entries []EntryDTO `json:"entries"`
}

type IndexResponse struct {
	Index      uint64 `json:"index"`
	NumEntries uint64 `json:"numEntries"`
}

type ErrorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}
