package upload

import "time"

// Clock 把定时器和当前时间抽象出来，重试/超时逻辑不依赖真实时间即可测试
type Clock interface {
    Now() time.Time
    After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
    return time.Now()
}

func (realClock) After(d time.Duration) <-chan time.Time {
    return time.After(d)
}
