package domain

import "time"

// Thread 表示一条访客与管理员之间的会话线程。
//
// token 是线程的唯一标识，嵌入在回复地址的子地址部分（local+token@domain），
// 生命周期内不可变。visitorEmail 是判断后续来信是否属于本线程的唯一依据。
type Thread struct {
	Token              string     `json:"token"`
	VisitorEmail       string     `json:"visitorEmail"`
	VisitorName        string     `json:"visitorName"`
	Subject            string     `json:"subject"`
	CreatedAt          time.Time  `json:"createdAt"`
	LastVisitorMessage string     `json:"lastVisitorMessage,omitempty"`
	LastAdminReplyAt   *time.Time `json:"lastAdminReplyAt,omitempty"`
}
