package warcraftlogs

import (
	"time"

	"github.com/goccy/go-json"

	"github.com/okian/rollcall/internal/domain/model"
)

const attendanceQuery = `query Attendance($guildID: Int!, $guildTagID: Int, $limit: Int, $page: Int, $zoneID: Int) {
  guildData {
    guild(id: $guildID) {
      attendance(guildTagID: $guildTagID, limit: $limit, page: $page, zoneID: $zoneID) {
        data {
          code
          startTime
          players { name presence }
          zone { id name }
        }
        total
        per_page
        current_page
        from
        to
        last_page
        has_more_pages
      }
    }
  }
}`

const rosterQuery = `query Roster($guildID: Int!, $limit: Int, $page: Int) {
  guildData {
    guild(id: $guildID) {
      members(limit: $limit, page: $page) {
        data { id name classID guildRank }
        has_more_pages
      }
    }
  }
}`

const tagsQuery = `query Tags($guildID: Int!) {
  guildData {
    guild(id: $guildID) {
      tags { id name }
    }
  }
}`

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

type attendanceData struct {
	GuildData struct {
		Guild *struct {
			Attendance attendancePagination `json:"attendance"`
		} `json:"guild"`
	} `json:"guildData"`
}

type attendancePagination struct {
	Data         []attendanceReport `json:"data"`
	Total        int                `json:"total"`
	PerPage      int                `json:"per_page"`
	CurrentPage  int                `json:"current_page"`
	From         int                `json:"from"`
	To           int                `json:"to"`
	LastPage     int                `json:"last_page"`
	HasMorePages bool               `json:"has_more_pages"`
}

type attendanceReport struct {
	Code      string             `json:"code"`
	StartTime float64            `json:"startTime"`
	Players   []attendancePlayer `json:"players"`
	Zone      *struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"zone"`
}

type attendancePlayer struct {
	Name     string `json:"name"`
	Presence int    `json:"presence"`
}

type rosterData struct {
	GuildData struct {
		Guild *struct {
			Members struct {
				Data []struct {
					ID        int    `json:"id"`
					Name      string `json:"name"`
					ClassID   int    `json:"classID"`
					GuildRank int    `json:"guildRank"`
				} `json:"data"`
				HasMorePages bool `json:"has_more_pages"`
			} `json:"members"`
		} `json:"guild"`
	} `json:"guildData"`
}

type tagsData struct {
	GuildData struct {
		Guild *struct {
			Tags []GuildTag `json:"tags"`
		} `json:"guild"`
	} `json:"guildData"`
}

// GuildTag is a guild's report tag as listed by the API.
type GuildTag struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

var classNames = map[int]string{ //nolint:gochecknoglobals // static lookup
	1: "DeathKnight", 2: "Druid", 3: "Hunter", 4: "Mage", 5: "Monk",
	6: "Paladin", 7: "Priest", 8: "Rogue", 9: "Shaman", 10: "Warlock",
	11: "Warrior", 12: "DemonHunter", 13: "Evoker",
}

func (p attendancePagination) toPage() Page {
	records := make([]model.RaidRecord, 0, len(p.Data))
	for _, r := range p.Data {
		records = append(records, r.toRecord())
	}
	return Page{
		Data:         records,
		Total:        p.Total,
		PerPage:      p.PerPage,
		CurrentPage:  p.CurrentPage,
		From:         p.From,
		To:           p.To,
		LastPage:     p.LastPage,
		HasMorePages: p.HasMorePages,
	}
}

func (r attendanceReport) toRecord() model.RaidRecord {
	rec := model.RaidRecord{
		Code:      r.Code,
		StartTime: time.UnixMilli(int64(r.StartTime)).UTC(),
		Players:   make(map[string]model.PlayerPresence, len(r.Players)),
	}
	if r.Zone != nil {
		rec.ZoneID = r.Zone.ID
	}
	for _, p := range r.Players {
		if _, dup := rec.Players[p.Name]; dup {
			continue
		}
		rec.Players[p.Name] = model.PlayerPresence{Presence: model.Presence(p.Presence)}
	}
	return rec
}
