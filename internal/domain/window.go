package domain

import (
	"fmt"
	"time"
)

// 市场窗口常量
const (
	Coin          = "BTC"
	Timeframe     = "5m"
	WindowSeconds = 300
)

var etLocation *time.Location

func init() {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		// 缺少时区数据库时退化为固定偏移（EST）
		loc = time.FixedZone("ET", -5*3600)
	}
	etLocation = loc
}

// ETLocation 市场使用的东部时区
func ETLocation() *time.Location {
	return etLocation
}

// WindowStart 当前 5 分钟窗口的起始时间（东部时区表示）
func WindowStart(t time.Time) time.Time {
	return t.In(etLocation).Truncate(WindowSeconds * time.Second)
}

// WindowEnd 当前窗口的结束时间
func WindowEnd(t time.Time) time.Time {
	return WindowStart(t).Add(WindowSeconds * time.Second)
}

// Slug 当前窗口的市场 slug："btc-updown-5m-<窗口起始秒>"
func Slug(t time.Time) string {
	return fmt.Sprintf("btc-updown-5m-%d", WindowStart(t).Unix())
}

// WindowID 蜡烛窗口标识（ET 日期 + 时间槽），用于一窗一单锁
func WindowID(t time.Time) string {
	return WindowStart(t).Format("2006-01-02-15-04")
}
