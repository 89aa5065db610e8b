package models

import "time"

type BagStatus string

const (
	BagStatusAvailable BagStatus = "Available"
	BagStatusClosed    BagStatus = "Closed"
)

// Receive is one delivered shipment logged against a PO.
type Receive struct {
	ID           int        `json:"id"`
	POID         int        `json:"po_id"`
	PONumber     string     `json:"po_number,omitempty"`
	Sequence     int        `json:"sequence"`
	ReceiveName  string     `json:"receive_name"` // {PO number}-{sequence}
	ReceivedDate time.Time  `json:"received_date"`
	Closed       bool       `json:"closed"`
	Boxes        []Box      `json:"boxes,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`
}

type Box struct {
	ID        int       `json:"id"`
	ReceiveID int       `json:"receive_id"`
	BoxNumber int       `json:"box_number"`
	BagCount  int       `json:"bag_count"` // declared on the box label
	Bags      []Bag     `json:"bags,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Bag struct {
	ID           int       `json:"id"`
	BoxID        int       `json:"box_id"`
	BagNumber    int       `json:"bag_number"`
	TabletTypeID int       `json:"tablet_type_id"`
	LabelCount   int       `json:"label_count"` // expected tablets printed on the bag
	Status       BagStatus `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// BagCandidate is a bag matched by FindBags together with the receive it arrived in.
type BagCandidate struct {
	BagID        int       `json:"bag_id"`
	BoxID        int       `json:"box_id"`
	BoxNumber    int       `json:"box_number"`
	BagNumber    int       `json:"bag_number"`
	TabletTypeID int       `json:"tablet_type_id"`
	LabelCount   int       `json:"label_count"`
	Status       BagStatus `json:"status"`
	ReceiveID    int       `json:"receive_id"`
	ReceiveName  string    `json:"receive_name"`
	ReceivedDate time.Time `json:"received_date"`
	POID         int       `json:"po_id"`
}

// BagQuery selects bags by physical position. A nil POID searches every PO.
type BagQuery struct {
	POID          *int
	BoxNumber     int
	BagNumber     int
	TabletTypeID  int
	IncludeClosed bool
}

// CreateReceiveRequest logs a shipment with its full box/bag hierarchy.
type CreateReceiveRequest struct {
	POID         int                `json:"po_id"`
	ReceivedDate *time.Time         `json:"received_date,omitempty"`
	Boxes        []CreateBoxRequest `json:"boxes"`
}

type CreateBoxRequest struct {
	BoxNumber int                `json:"box_number"`
	BagCount  int                `json:"bag_count"`
	Bags      []CreateBagRequest `json:"bags"`
}

type CreateBagRequest struct {
	BagNumber    int `json:"bag_number"`
	TabletTypeID int `json:"tablet_type_id"`
	LabelCount   int `json:"label_count"`
}
