package mqx

import (
	"strconv"
	"sync"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// partitionOffsets 一个分区已经拉取的 offset，按拉取顺序排列
type partitionOffsets struct {
	topic     string
	partition int32
	pending   []kafka.Offset
	done      map[kafka.Offset]struct{}
	// 第一条重新投递失败的消息，它和它之后的 offset 都不能提交
	failed    kafka.Offset
	hasFailed bool
	// next 可以提交的位置，也就是下一条要消费的 offset
	next      kafka.Offset
	committed kafka.Offset
}

// offsetTracker 每个分区只提交连续处理完的 offset。
// 一条消息处理得慢只推迟它所在分区的提交，不影响其他消息的处理
type offsetTracker struct {
	mu         sync.Mutex
	partitions map[string]*partitionOffsets
	// 上次提交之后又处理完的消息数
	advanced  int
	hasFailed bool
}

func newOffsetTracker() *offsetTracker {
	return &offsetTracker{partitions: make(map[string]*partitionOffsets)}
}

func (t *offsetTracker) partitionOf(tp kafka.TopicPartition) *partitionOffsets {
	topic := ""
	if tp.Topic != nil {
		topic = *tp.Topic
	}
	key := topic + "/" + strconv.FormatInt(int64(tp.Partition), 10)
	p, ok := t.partitions[key]
	if !ok {
		p = &partitionOffsets{
			topic:     topic,
			partition: tp.Partition,
			done:      make(map[kafka.Offset]struct{}),
			next:      kafka.OffsetInvalid,
			committed: kafka.OffsetInvalid,
		}
		t.partitions[key] = p
	}
	return p
}

func (t *offsetTracker) add(tp kafka.TopicPartition) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.partitionOf(tp)
	p.pending = append(p.pending, tp.Offset)
}

// done err 不为空表示消息既没有处理成功，也没有重新投递出去
func (t *offsetTracker) done(tp kafka.TopicPartition, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.partitionOf(tp)
	if err != nil {
		if !p.hasFailed || tp.Offset < p.failed {
			p.failed, p.hasFailed = tp.Offset, true
		}
		t.hasFailed = true
		return
	}
	p.done[tp.Offset] = struct{}{}
	for len(p.pending) > 0 {
		head := p.pending[0]
		if _, ok := p.done[head]; !ok {
			break
		}
		delete(p.done, head)
		p.pending = p.pending[1:]
		p.next = head + 1
		t.advanced++
	}
}

func (t *offsetTracker) failed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hasFailed
}

func (t *offsetTracker) uncommitted() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.advanced
}

// commitable 返回位置有变化的分区
func (t *offsetTracker) commitable() []kafka.TopicPartition {
	t.mu.Lock()
	defer t.mu.Unlock()
	var res []kafka.TopicPartition
	for _, p := range t.partitions {
		if p.next == kafka.OffsetInvalid || p.next == p.committed {
			continue
		}
		topic := p.topic
		res = append(res, kafka.TopicPartition{Topic: &topic, Partition: p.partition, Offset: p.next})
	}
	return res
}

func (t *offsetTracker) committed(offsets []kafka.TopicPartition) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, tp := range offsets {
		t.partitionOf(tp).committed = tp.Offset
	}
	t.advanced = 0
}

// rewind 重新投递失败的分区需要回到失败的那条消息重新消费
func (t *offsetTracker) rewind() []kafka.TopicPartition {
	t.mu.Lock()
	defer t.mu.Unlock()
	var res []kafka.TopicPartition
	for _, p := range t.partitions {
		if !p.hasFailed {
			continue
		}
		topic := p.topic
		res = append(res, kafka.TopicPartition{Topic: &topic, Partition: p.partition, Offset: p.failed})
	}
	return res
}
